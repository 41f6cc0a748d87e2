package model

import "errors"

var (
	// ErrProviderUnavailable 网络错误/超时/上游不可用，调用方可自行退避重试
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrMalformedResponse 快照响应无法按预期结构解析
	ErrMalformedResponse = errors.New("malformed response")
	// ErrMalformedFrame 推送帧不符合固定 schema
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrQuoteNotFound 行情源不认识该代码
	ErrQuoteNotFound = errors.New("quote not found")
	// ErrIncompleteQuoteFields 所选时段分支缺少必需字段
	ErrIncompleteQuoteFields = errors.New("incomplete quote fields")
	ErrInvalidArgument       = errors.New("invalid argument")
)
