package constants

import "time"

const (
	// SessionKeyPrefix 会话记录的Redis键前缀
	SessionKeyPrefix = "screening:session:"
	// TaskKeyPrefix 后台任务状态记录的Redis键前缀
	TaskKeyPrefix = "screening:task:"

	// SessionTTL 会话与任务状态记录的默认过期时间
	SessionTTL = 24 * time.Hour
)
