package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanPublishTemplate(t *testing.T) {
	tests := []struct {
		name       string
		ctx        Context
		wantOK     bool
		wantReason string
	}{
		{
			name:   "build token bound to pipeline",
			ctx:    Context{Authenticated: true, Scope: []string{ScopeBuild}, PipelineID: 123},
			wantOK: true,
		},
		{
			name:       "unauthenticated",
			ctx:        Context{},
			wantReason: "authentication required",
		},
		{
			name:       "user token",
			ctx:        Context{Authenticated: true, Scope: []string{"user"}, PipelineID: 123},
			wantReason: "build scope required",
		},
		{
			name:       "no pipeline claim",
			ctx:        Context{Authenticated: true, Scope: []string{ScopeBuild}},
			wantReason: "token is not bound to a pipeline",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := CanPublishTemplate(tt.ctx)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantReason, reason)
		})
	}
}
