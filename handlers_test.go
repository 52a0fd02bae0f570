package damkit

import (
	"errors"
	"testing"
)

func TestBuildDatabaseURL(t *testing.T) {
	tests := []struct {
		name    string
		cfg     clientConfig
		want    string
		wantErr bool
	}{
		{
			name: "sqlite path",
			cfg:  clientConfig{database: databaseSQLite, dbPath: "/data/damkit.db"},
			want: "sqlite:////data/damkit.db",
		},
		{
			name: "postgres dsn",
			cfg:  clientConfig{database: databasePostgres, dbDSN: "postgres://u:p@localhost:5432/damkit"},
			want: "postgres://u:p@localhost:5432/damkit",
		},
		{
			name: "postgresql scheme",
			cfg:  clientConfig{database: databasePostgres, dbDSN: "postgresql://u:p@localhost/damkit?sslmode=disable"},
			want: "postgresql://u:p@localhost/damkit?sslmode=disable",
		},
		{
			name:    "postgres with wrong scheme",
			cfg:     clientConfig{database: databasePostgres, dbDSN: "mysql://u:p@localhost/damkit"},
			wantErr: true,
		},
		{
			name: "url passes through",
			cfg:  clientConfig{database: databaseURL, dbDSN: "sqlite:///tmp/x.db"},
			want: "sqlite:///tmp/x.db",
		},
		{
			name:    "unset",
			cfg:     clientConfig{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildDatabaseURL(&tt.cfg)
			if tt.wantErr {
				if !errors.Is(err, ErrNoDatabase) {
					t.Fatalf("error = %v, want ErrNoDatabase", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("buildDatabaseURL() = %q, want %q", got, tt.want)
			}
		})
	}
}
