package consts

const (
	ParamRoomID = "roomID"
	QueryToken  = "token"
)
