package flagx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var serverFlags = []string{"-a", "-g", "-d", "-t"}

func TestFilterArgs(t *testing.T) {
	cases := map[string]struct {
		args []string
		want []string
	}{
		"keeps known flags with values": {
			args: []string{"-a", "0.0.0.0:8080", "-test.v", "-t", "15"},
			want: []string{"-a", "0.0.0.0:8080", "-t", "15"},
		},
		"equals form": {
			args: []string{"-d=postgres://db/auth", "-x=1"},
			want: []string{"-d=postgres://db/auth"},
		},
		"test runner flags dropped": {
			args: []string{"-test.run", "TestLogin", "-test.count=1"},
			want: []string{},
		},
		"dangling flag kept without value": {
			args: []string{"-g"},
			want: []string{"-g"},
		},
		"next flag is never a value": {
			args: []string{"-a", "-g", ":9090"},
			want: []string{"-a", "-g", ":9090"},
		},
		"positional arguments dropped": {
			args: []string{"create-user", "alice", "-t", "5"},
			want: []string{"-t", "5"},
		},
		"repeated flag preserved in order": {
			args: []string{"-t", "5", "-t", "10"},
			want: []string{"-t", "5", "-t", "10"},
		},
		"nil args": {
			args: nil,
			want: []string{},
		},
	}

	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, c.want, FilterArgs(c.args, serverFlags))
		})
	}
}

func TestConfigFilePath(t *testing.T) {
	assert.Equal(t, "auth.json", ConfigFilePath([]string{"-c", "auth.json", "-a", ":8080"}))
	assert.Equal(t, "auth.json", ConfigFilePath([]string{"-config", "auth.json"}))
	assert.Equal(t, "/etc/authkeeper.json", ConfigFilePath([]string{"-t", "5", "--config=/etc/authkeeper.json"}))
	assert.Equal(t, "second.json", ConfigFilePath([]string{"-c", "first.json", "-config", "second.json"}))
	assert.Empty(t, ConfigFilePath([]string{"-a", ":8080"}))
	assert.Empty(t, ConfigFilePath(nil))
}
