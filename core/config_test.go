package core

import (
	"testing"
	"time"
)

func validConfig() *Config {
	conf := &Config{
		AppName:   "Darasa",
		SecretKey: "secret",
		Subjects:  []string{"Math", "Physics"},
	}
	conf.Database.Engine = "postgres"
	conf.Database.Name = "darasa"
	conf.Server.JWTExpirationDelta = 10 * time.Minute
	return conf
}

func TestConfigValidateSubjects(t *testing.T) {
	tests := []struct {
		name     string
		subjects []string
		wantErr  bool
	}{
		{"valid", []string{"Math", "Physics"}, false},
		{"empty", nil, true},
		{"blank entry", []string{"Math", ""}, true},
		{"duplicate", []string{"Math", "Math"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := validConfig()
			conf.Subjects = tt.subjects
			err := conf.validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v; wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigIsKnownSubject(t *testing.T) {
	conf := validConfig()
	if !conf.IsKnownSubject("Math") {
		t.Error(`IsKnownSubject("Math") = false`)
	}
	if conf.IsKnownSubject("Alchemy") {
		t.Error(`IsKnownSubject("Alchemy") = true`)
	}
}
