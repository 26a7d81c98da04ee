package service

import (
	"errors"
	"regexp"
	"strings"

	"taskchat/model"
	"taskchat/platform"

	"golang.org/x/crypto/bcrypt"
)

type UserService struct {
}

type User struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func isValidEmail(email string) bool {
	if strings.TrimSpace(email) == "" {
		return false
	}
	return emailRegex.MatchString(email)
}

func (service *UserService) Register(user *User) error {
	if !isValidEmail(user.Email) {
		return errors.New("invalid email address")
	}

	// 唯一性检查
	if model.UserExists(user.Username, user.Email) {
		return errors.New("user already exists")
	}

	// 密码加密
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return errors.New("internal server error")
	}

	// 存储用户信息
	newUser := &model.User{
		Username: user.Username,
		Email:    user.Email,
		Password: string(hashedPassword),
	}
	if err := model.CreateUser(newUser); err != nil {
		return errors.New("internal server error")
	}
	return nil
}

func (service *UserService) Login(user *User) (string, error) {
	// 验证用户名和密码
	registeredUser, err := model.GetUserByUsername(user.Username)
	if err != nil {
		return "", errors.New("failed to get user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(registeredUser.Password), []byte(user.Password)); err != nil {
		return "", errors.New("invalid credentials")
	}

	// 生成会话令牌
	ts := &TokenService{}
	token, err := ts.CreateToken(registeredUser.ID, registeredUser.Username)
	if err != nil {
		platform.Logger.Warnf("Error generating token for user %s: %v", user.Username, err)
		return "", errors.New("failed to generate token")
	}

	return token.AccessToken, nil
}
