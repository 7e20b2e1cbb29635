package domain

// 错误码：写入日志的 error_code 字段，便于宿主侧按类别排查。
const (
	ErrCodeConfigMissing       = "config_missing"
	ErrCodeConfigInvalid       = "config_invalid"
	ErrCodeCredentialDiscovery = "credential_discovery_failed"
	ErrCodeMarkupMismatch      = "markup_mismatch"
	ErrCodeDateFormatMismatch  = "date_format_mismatch"
	ErrCodeTransport           = "transport_error"
	ErrCodeBlocked             = "blocked"
	ErrCodeDecodeFailed        = "decode_failed"
	ErrCodeInternal            = "internal_error"
)
