package main

import (
	"net/http/httptest"
	"testing"

	svc "github.com/interviewhelper/backend/services"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm/logger"
)

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		name           string
		allowedOrigins string
		requestOrigin  string
		expected       bool
	}{
		{
			name:           "Allowed origin - exact match",
			allowedOrigins: "http://localhost,http://example.com",
			requestOrigin:  "http://localhost",
			expected:       true,
		},
		{
			name:           "Allowed origin - second in list",
			allowedOrigins: "http://localhost,http://example.com",
			requestOrigin:  "http://example.com",
			expected:       true,
		},
		{
			name:           "Disallowed origin",
			allowedOrigins: "http://localhost,http://example.com",
			requestOrigin:  "http://malicious.com",
			expected:       false,
		},
		{
			name:           "Empty allowed origins - deny all",
			allowedOrigins: "",
			requestOrigin:  "http://localhost",
			expected:       false,
		},
		{
			name:           "Origin with whitespace in config",
			allowedOrigins: "http://localhost, http://example.com",
			requestOrigin:  "http://example.com",
			expected:       true,
		},
		{
			name:           "Port-specific origin allowed",
			allowedOrigins: "http://localhost:5173",
			requestOrigin:  "http://localhost:5173",
			expected:       true,
		},
		{
			name:           "Blank entries ignored",
			allowedOrigins: " , ,",
			requestOrigin:  "",
			expected:       false,
		},
		{
			name:           "Port mismatch - deny",
			allowedOrigins: "http://localhost:5173",
			requestOrigin:  "http://localhost:8080",
			expected:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Reset viper config for each test
			viper.Reset()
			viper.Set("websocket.allowed_origins", tt.allowedOrigins)

			// Create a request with the test origin
			req := httptest.NewRequest("GET", "/interview/1/ws", nil)
			req.Header.Set("Origin", tt.requestOrigin)

			// Test the CheckOrigin function with allowed origins from config
			allowed := viper.GetString("websocket.allowed_origins")
			result := svc.CheckOrigin(req, allowed)

			assert.Equal(t, tt.expected, result, "origin %s with allowed origins %q", tt.requestOrigin, tt.allowedOrigins)
		})
	}
}

func TestGormLogLevel(t *testing.T) {
	assert.Equal(t, logger.Error, gormLogLevel("error"))
	assert.Equal(t, logger.Warn, gormLogLevel("WARN"))
	assert.Equal(t, logger.Info, gormLogLevel("info"))
	assert.Equal(t, logger.Silent, gormLogLevel(""))
	assert.Equal(t, logger.Silent, gormLogLevel("verbose"))
}

func TestOpenDatabase(t *testing.T) {
	_, err := openDatabase(svc.DatabaseConfig{Driver: "sqlite"})
	assert.Error(t, err, "missing URL must fail")

	_, err = openDatabase(svc.DatabaseConfig{Driver: "mysql", URL: "x"})
	assert.Error(t, err)

	db, err := openDatabase(svc.DatabaseConfig{Driver: "sqlite", URL: "file::memory:", MaxIdleConns: 1, MaxOpenConns: 1})
	if assert.NoError(t, err) {
		sqlDB, err := db.DB()
		assert.NoError(t, err)
		assert.NoError(t, sqlDB.Ping())
		sqlDB.Close()
	}
}
