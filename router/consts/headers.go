package consts

const (
	HeaderVersion      = "X-CALLSIGNAL-VERSION"
	HeaderCloudTrace   = "X-Cloud-Trace-Context"
	HeaderCacheControl = "Cache-Control"
)
