package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
)

// 訊息內容在落地 Mongo 前以 AES-GCM 加密，金鑰來自 ENCRYPTION_SECRET（32 bytes）
// 密文格式：base64(nonce + ciphertext + tag)

var ErrCiphertextTooShort = errors.New("ciphertext shorter than nonce")

// Encrypt 加密訊息內容，每次呼叫產生新的隨機 nonce
func Encrypt(plaintext string, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	// nonce 不可重複使用，這裡直接前置在密文裡，解密時取回
	sealed := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, sealed); err != nil {
		return "", err
	}
	sealed = gcm.Seal(sealed, sealed[:gcm.NonceSize()], []byte(plaintext), nil)

	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt 解密 Encrypt 產生的密文
// 金鑰不符或資料被竄改時 GCM 驗證會失敗並回傳錯誤
func Decrypt(ciphertext string, key []byte) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	if len(data) < gcm.NonceSize() {
		return "", ErrCiphertextTooShort
	}
	nonce, sealed := data[:gcm.NonceSize()], data[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
