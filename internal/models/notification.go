package models

// NotificationKind адресат уведомления.
type NotificationKind string

const (
	NotifyUser     NotificationKind = "user"
	NotifyOperator NotificationKind = "operator"
)

// Notification сообщение в очереди уведомлений. Для операторских сообщений
// ChatID не заполняется, рассылка идет всем операторам.
type Notification struct {
	Kind   NotificationKind `json:"kind"`
	ChatID int64            `json:"chat_id,omitempty"`
	Text   string           `json:"text"`
}
