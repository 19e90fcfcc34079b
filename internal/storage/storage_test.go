package storage

import "testing"

func TestTableName(t *testing.T) {
	cases := []struct {
		netloc string
		want   string
		ok     bool
	}{
		{"example.com", "_example.com", true},
		{"sub.example.com", "_sub.example.com", true},
		{"127.0.0.1:8080", "_127.0.0.1:8080", true},
		{"host-name.org", "_host-name.org", true},
		{"", "", false},
		{"bad'name", "", false},
		{`x" --`, "", false},
		{"with space.com", "", false},
	}

	for _, tc := range cases {
		got, err := TableName(tc.netloc)
		if tc.ok {
			if err != nil {
				t.Errorf("TableName(%q) unexpected error: %v", tc.netloc, err)
				continue
			}
			if got != tc.want {
				t.Errorf("TableName(%q) = %q, want %q", tc.netloc, got, tc.want)
			}
		} else if err == nil {
			t.Errorf("TableName(%q) expected error, got %q", tc.netloc, got)
		}
	}
}
