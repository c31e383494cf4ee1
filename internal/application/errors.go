package application

import "errors"

// 座席同期のエラー定義
var (
	// ErrSeatBusy は同じ座席への書き込みが進行中のときに返る
	// 2つ目のコマンドは破棄され、状態は一切変更されない
	ErrSeatBusy = errors.New("座席への書き込みが進行中です")

	// ErrSeatLockedByOther は別のインスタンスの管理者が座席を処理中のときに返る
	ErrSeatLockedByOther = errors.New("座席は他の管理者によって処理中です")

	// ErrSessionClosed はクローズ済みセッションへの操作で返る
	ErrSessionClosed = errors.New("セッションは既にクローズされています")

	// ErrSessionNotOpen はトリップのセッションが開かれていないときに返る
	ErrSessionNotOpen = errors.New("トリップのセッションが開かれていません")

	// ErrSummaryUnavailable は集計値がどの供給源からも得られないときに返る
	ErrSummaryUnavailable = errors.New("座席集計を取得できません")
)
