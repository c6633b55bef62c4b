package random

import (
	crand "crypto/rand"
	"math/rand/v2"
)

const alphaNumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// secureLimit 62の倍数のうち256未満で最大の値。これ以上のバイトは偏りが出るので捨てます
const secureLimit = 256 - 256%len(alphaNumeric)

// AlphaNumeric n文字のランダム英数字文字列を生成します
//
// math/randを使うので、セッションキーなど推測されても問題ない識別子に使ってください
func AlphaNumeric(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = alphaNumeric[rand.IntN(len(alphaNumeric))]
	}
	return string(b)
}

// SecureAlphaNumeric n文字のランダム英数字文字列をcrypto/randで生成します
func SecureAlphaNumeric(n int) string {
	b := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(b) < n {
		if _, err := crand.Read(buf); err != nil {
			panic(err)
		}
		for _, c := range buf {
			if int(c) >= secureLimit {
				continue
			}
			b = append(b, alphaNumeric[int(c)%len(alphaNumeric)])
			if len(b) == n {
				break
			}
		}
	}
	return string(b)
}
