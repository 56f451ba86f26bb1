package daemon

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestManagerFor(t *testing.T) {
	tests := []struct {
		goos    string
		want    ServiceManager
		wantErr bool
	}{
		{"darwin", Launchd, false},
		{"linux", Systemd, false},
		{"windows", "", true},
	}
	for _, tt := range tests {
		got, err := ManagerFor(tt.goos)
		if (err != nil) != tt.wantErr {
			t.Errorf("ManagerFor(%q) error = %v, wantErr %v", tt.goos, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ManagerFor(%q) = %q, want %q", tt.goos, got, tt.want)
		}
	}
}

func TestGenerateUnit(t *testing.T) {
	config := ServiceConfig{
		BinaryPath:       "/usr/local/bin/playerhub",
		LogDir:           "/home/u/.local/share/playerhub/logs",
		WorkingDirectory: "/home/u",
	}

	tests := []struct {
		manager ServiceManager
		want    []string
	}{
		{Launchd, []string{
			"<string>" + ServiceLabel + "</string>",
			"<string>/usr/local/bin/playerhub</string>",
			"<string>daemon</string>",
			"/home/u/.local/share/playerhub/logs/playerhub.err",
			"<key>KeepAlive</key>",
		}},
		{Systemd, []string{
			"ExecStart=/usr/local/bin/playerhub daemon --log-file /home/u/.local/share/playerhub/logs/playerhub.log",
			"WorkingDirectory=/home/u",
			"WantedBy=default.target",
		}},
	}

	for _, tt := range tests {
		t.Run(string(tt.manager), func(t *testing.T) {
			unit, err := GenerateUnit(tt.manager, config)
			if err != nil {
				t.Fatalf("GenerateUnit() error = %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(unit, want) {
					t.Errorf("unit missing %q:\n%s", want, unit)
				}
			}
		})
	}
}

func TestUnitPath(t *testing.T) {
	t.Setenv("HOME", "/home/u")

	path, err := UnitPath(Launchd)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join("/home/u", "Library", "LaunchAgents", ServiceLabel+".plist"); path != want {
		t.Errorf("UnitPath(Launchd) = %q, want %q", path, want)
	}

	path, err = UnitPath(Systemd)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join("/home/u", ".config", "systemd", "user", "playerhub.service"); path != want {
		t.Errorf("UnitPath(Systemd) = %q, want %q", path, want)
	}
}
