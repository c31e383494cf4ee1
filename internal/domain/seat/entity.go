package seat

// Seat は船舶の座席エンティティを表す
// 物理属性は不変で、IsAvailable のみ予約状態から導出される投影
type Seat struct {
	ID              string
	VesselID        string
	RowNumber       int
	SeatNumber      string // 表示用ラベル（例: "12A"）
	IsWindow        bool
	IsAisle         bool
	IsRowAisle      bool
	IsDisabled      bool
	IsPremium       bool
	SeatType        string
	PriceMultiplier float64
	Position        int

	// IsAvailable は投影であり真実の源ではない
	// 真実は座席予約マップ側にあり、Inventory が再計算する
	IsAvailable bool
}

// 座席タイプ
const (
	TypeStandard = "standard"
	TypePremium  = "premium"
)

// New は新しい座席を作成する
func New(vesselID string, rowNumber int, seatNumber string) *Seat {
	return &Seat{
		VesselID:        vesselID,
		RowNumber:       rowNumber,
		SeatNumber:      seatNumber,
		SeatType:        TypeStandard,
		PriceMultiplier: 1.0,
		IsAvailable:     true,
	}
}

// Clone は座席のコピーを返す
func (s *Seat) Clone() *Seat {
	c := *s
	return &c
}

// Validate は座席の検証を行う
func (s *Seat) Validate() error {
	if s.VesselID == "" {
		return ErrVesselIDRequired
	}
	if s.SeatNumber == "" {
		return ErrSeatNumberRequired
	}
	if s.RowNumber <= 0 {
		return ErrInvalidRowNumber
	}
	if s.PriceMultiplier <= 0 {
		return ErrInvalidPriceMultiplier
	}
	return nil
}
