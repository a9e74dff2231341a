package order

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

var otpSpace = big.NewInt(10000)

// GenerateOTP 生成 4 位数字配送码（0000-9999），不保证唯一。
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpSpace)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%04d", n.Int64()), nil
}
