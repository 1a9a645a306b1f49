// Package service 包含了应用的业务逻辑层。
package service

import "errors"

var (
	ErrInvalidLanguage     = errors.New("unsupported language code")
	ErrPromptRuleExists    = errors.New("prompt rule trigger already exists")
	ErrPromptRuleNotFound  = errors.New("prompt rule not found")
	ErrSkipKeywordExists   = errors.New("skip keyword already exists")
	ErrSkipKeywordNotFound = errors.New("skip keyword not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAdminExists         = errors.New("admin user already exists")
)
