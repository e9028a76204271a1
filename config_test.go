package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePort(t *testing.T) {
	tests := []struct {
		arg     string
		want    uint16
		wantErr bool
	}{
		{arg: "9001", want: 9001},
		{arg: "65535", want: 65535},
		{arg: "0", wantErr: true},
		{arg: "70000", wantErr: true},
		{arg: "abc", wantErr: true},
		{arg: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			got, err := parsePort(tt.arg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChatServerOptsDefaults(t *testing.T) {
	var o ChatServerOpts
	o.applyDefaults()
	assert.Equal(t, defaultMaxConnections, o.MaxConnections)
	assert.NotNil(t, o.Out)
	assert.NotNil(t, o.Logger)
}
