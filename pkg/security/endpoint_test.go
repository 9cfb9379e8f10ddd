package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEndpoint(t *testing.T) {
	assert.Equal(t, "http://localhost:11434", NormalizeEndpoint("localhost:11434"))
	assert.Equal(t, "https://api.example.com/v1", NormalizeEndpoint(" https://api.example.com/v1 "))
	assert.Equal(t, "", NormalizeEndpoint(""))
}

func TestValidateEndpoint(t *testing.T) {
	strict := EndpointPolicy{}
	tests := []struct {
		name   string
		url    string
		policy EndpointPolicy
		ok     bool
	}{
		{"https remote", "https://api.example.com/v1", strict, true},
		{"http refused", "http://api.example.com/v1", strict, false},
		{"local ollama", "http://localhost:11434", LocalEngines, true},
		{"localhost refused", "https://localhost:8080", strict, false},
		{"private ip allowed locally", "http://192.168.1.20:8080/v1", LocalEngines, true},
		{"private ip refused", "https://192.168.1.20:8080/v1", strict, false},
		{"unspecified", "http://0.0.0.0:11434", LocalEngines, false},
		{"bad scheme", "ftp://example.com", LocalEngines, false},
		{"no host", "http://", LocalEngines, false},
		{"zoned ipv6 refused", "https://[fe80::1%25eth0]/", strict, false},
		{"zoned ipv6 allowed locally", "https://[fe80::1%25eth0]/", LocalEngines, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEndpoint(tt.url, tt.policy)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
