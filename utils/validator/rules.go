package validator

import (
	"regexp"

	vd "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// RoomIDRule 通話ルームIDバリデーションルール
var RoomIDRule = []vd.Rule{
	vd.Match(regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)).Error("must contain [a-zA-Z0-9_-] only"),
	vd.RuneLength(1, 128),
}

// RoomIDRuleRequired 通話ルームIDバリデーションルール with Required
var RoomIDRuleRequired = append([]vd.Rule{
	vd.Required,
}, RoomIDRule...)

// DisplayNameRule 表示名バリデーションルール
var DisplayNameRule = []vd.Rule{
	vd.RuneLength(1, 64),
}

// ICEURLRule ICEサーバーURLバリデーションルール
var ICEURLRule = []vd.Rule{
	vd.Required,
	vd.Match(regexp.MustCompile(`^(stun|stuns|turn|turns):[^\s]+$`)).Error("must be a stun: or turn: URL"),
}

// ICEServerURLsRule ICEサーバーURL一覧バリデーションルール
var ICEServerURLsRule = []vd.Rule{
	vd.Required,
	vd.Each(ICEURLRule...),
}

// ServerOriginRule サーバーオリジンバリデーションルール
var ServerOriginRule = []vd.Rule{
	vd.Required,
	is.URL,
}
