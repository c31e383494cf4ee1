package inventory

import (
	"github.com/zayan1337/ferry-seat-sync/internal/domain/reservation"
	"github.com/zayan1337/ferry-seat-sync/internal/domain/seat"
)

// Snapshot は座席在庫の集計値を表す
// マップと座席リストから毎回全量再計算され、差分更新はしない
type Snapshot struct {
	Total     int `json:"total"`
	Available int `json:"available"`
	Booked    int `json:"booked"`
	Blocked   int `json:"blocked"`
}

// Inventory は1トリップ分の座席在庫のインメモリ投影を表す
// 排他制御は持たない。所有者（セッション）がアクセスを直列化する
type Inventory struct {
	seats        []*seat.Seat
	bySeatID     map[string]*seat.Seat
	reservations map[string]*reservation.SeatReservation // seatID -> 行
	snapshot     Snapshot
}

// New は空の在庫投影を作成する
func New() *Inventory {
	return &Inventory{
		bySeatID:     make(map[string]*seat.Seat),
		reservations: make(map[string]*reservation.SeatReservation),
	}
}

// Load は座席リストと予約マップを一括で置き換える
// 部分的な状態は観測されない（置換と再計算は同期的に完了する）
func (i *Inventory) Load(seats []*seat.Seat, reservations []*reservation.SeatReservation) {
	i.seats = make([]*seat.Seat, len(seats))
	i.bySeatID = make(map[string]*seat.Seat, len(seats))
	for n, s := range seats {
		c := s.Clone()
		i.seats[n] = c
		i.bySeatID[c.ID] = c
	}
	i.reservations = make(map[string]*reservation.SeatReservation, len(reservations))
	for _, r := range reservations {
		i.reservations[r.SeatID] = r.Clone()
	}
	i.recompute()
}

// ApplyUpsert は1座席分の予約行を置き換える
// 同じ行を2回適用しても状態は変わらない（冪等）
func (i *Inventory) ApplyUpsert(r *reservation.SeatReservation) {
	i.reservations[r.SeatID] = r.Clone()
	i.recompute()
}

// ApplyRemoval は予約行を取り除く
// 行が存在しない座席に対しては実質的に何もしない（利用可能が既定状態）
func (i *Inventory) ApplyRemoval(seatID string) {
	delete(i.reservations, seatID)
	i.recompute()
}

// Status は座席IDの導出状態を返す
func (i *Inventory) Status(seatID string) reservation.Status {
	return reservation.DeriveStatus(i.reservations[seatID])
}

// Has は座席が在庫に存在するかを返す
func (i *Inventory) Has(seatID string) bool {
	_, ok := i.bySeatID[seatID]
	return ok
}

// Reservation は座席IDの予約行のコピーを返す（なければnil）
func (i *Inventory) Reservation(seatID string) *reservation.SeatReservation {
	r, ok := i.reservations[seatID]
	if !ok {
		return nil
	}
	return r.Clone()
}

// Seats は座席リストのコピーを返す（読み込み順のまま）
func (i *Inventory) Seats() []*seat.Seat {
	out := make([]*seat.Seat, len(i.seats))
	for n, s := range i.seats {
		out[n] = s.Clone()
	}
	return out
}

// Snapshot は現在の集計値を返す
func (i *Inventory) Snapshot() Snapshot {
	return i.snapshot
}

// Size は座席数を返す
func (i *Inventory) Size() int {
	return len(i.seats)
}

// recompute は集計値と各座席の IsAvailable 投影を全量再計算する
// 全ての変更操作の直後に同期的に呼ばれるため、読み手が
// マップと集計の食い違いを観測することはない
func (i *Inventory) recompute() {
	snap := Snapshot{Total: len(i.seats)}
	for _, s := range i.seats {
		st := reservation.DeriveStatus(i.reservations[s.ID])
		s.IsAvailable = st == reservation.StatusAvailable
		switch st {
		case reservation.StatusBooked:
			snap.Booked++
		case reservation.StatusBlocked:
			snap.Blocked++
		default:
			snap.Available++
		}
	}
	i.snapshot = snap
}
