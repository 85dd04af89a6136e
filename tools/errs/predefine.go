package errs

// 预定义错误码：1xxx 通用，2xxx 身份，3xxx 投递
var (
	ErrInternalServer = NewCodeError(1000, "server internal error")
	ErrArgs           = NewCodeError(1001, "bad request args")
	ErrRecordNotFound = NewCodeError(1002, "record not found")
	ErrRecordIsExist  = NewCodeError(1003, "record already exists")

	ErrTokenExpired   = NewCodeError(2001, "token expired or invalid")
	ErrTokenMissing   = NewCodeError(2002, "token missing")
	ErrIdentityDenied = NewCodeError(2003, "identity validation rejected")

	ErrNotOnline     = NewCodeError(3001, "recipient not online")
	ErrSessionClosed = NewCodeError(3002, "session closed")
)
