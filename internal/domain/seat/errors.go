package seat

import "errors"

// Seat ドメインのエラー定義
var (
	ErrSeatNotFound           = errors.New("座席が見つかりません")
	ErrVesselIDRequired       = errors.New("船舶IDは必須です")
	ErrSeatNumberRequired     = errors.New("座席番号は必須です")
	ErrInvalidRowNumber       = errors.New("列番号は1以上である必要があります")
	ErrInvalidPriceMultiplier = errors.New("価格係数は0より大きい必要があります")
)
