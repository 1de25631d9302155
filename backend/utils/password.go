package utils

import "golang.org/x/crypto/bcrypt"

// bcrypt 成本參數，調高會讓登入與註冊明顯變慢
const passwordHashCost = 14

// HashPassword 產生帳號密碼的 bcrypt 雜湊，存入 users collection
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPasswordHash 驗證登入時的明文密碼是否與儲存的雜湊相符
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
