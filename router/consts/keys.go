package consts

const (
	KeyUserID   = "userID"
	KeyUserName = "userName"
	KeyRoomID   = "roomID"
)
