package changefeed

import "errors"

// 変更フィードのエラー定義
var (
	ErrSubscriptionClosed = errors.New("購読は既にクローズされています")
	ErrSubscribeFailed    = errors.New("変更フィードの購読に失敗しました")
)
