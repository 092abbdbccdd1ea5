package config

import "testing"

func TestParseICEServersJSON_SingleURLString(t *testing.T) {
	servers, err := ParseICEServersJSON(`[{"urls":"stun:stun.l.google.com:19302"}]`, false)
	if err != nil {
		t.Fatalf("ParseICEServersJSON: %v", err)
	}
	if len(servers) != 1 {
		t.Fatalf("len=%d, want 1", len(servers))
	}
	if got := servers[0].URLs[0]; got != "stun:stun.l.google.com:19302" {
		t.Fatalf("urls[0]=%q", got)
	}
}

func TestParseICEServersJSON_TURNRequiresCredentials(t *testing.T) {
	_, err := ParseICEServersJSON(`[{"urls":["turn:turn.example.com:3478"]}]`, false)
	if err == nil {
		t.Fatalf("expected error, got nil")
	}

	servers, err := ParseICEServersJSON(`[{"urls":["turn:turn.example.com:3478"],"username":"u","credential":"p"}]`, false)
	if err != nil {
		t.Fatalf("ParseICEServersJSON: %v", err)
	}
	if servers[0].Username != "u" {
		t.Fatalf("username=%q, want u", servers[0].Username)
	}
}

func TestParseICEServersJSON_TURNRESTRelaxesCredentials(t *testing.T) {
	servers, err := ParseICEServersJSON(`[{"urls":["turns:turn.example.com:5349"]}]`, true)
	if err != nil {
		t.Fatalf("ParseICEServersJSON: %v", err)
	}
	if len(servers) != 1 {
		t.Fatalf("len=%d, want 1", len(servers))
	}
}

func TestParseICEServersJSON_RejectsUnknownScheme(t *testing.T) {
	_, err := ParseICEServersJSON(`[{"urls":["http://example.com"]}]`, false)
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
}

func TestParseICEServersFromConvenienceEnv(t *testing.T) {
	servers, err := parseICEServersFromValues(
		"",
		"stun:stun1.example.com:3478, stun:stun2.example.com:3478",
		"turn:turn.example.com:3478",
		"user",
		"pass",
		false,
	)
	if err != nil {
		t.Fatalf("parseICEServersFromValues: %v", err)
	}
	if len(servers) != 2 {
		t.Fatalf("len=%d, want 2", len(servers))
	}
	if len(servers[0].URLs) != 2 {
		t.Fatalf("stun urls=%v, want 2 entries", servers[0].URLs)
	}
	if servers[1].Username != "user" {
		t.Fatalf("turn username=%q, want user", servers[1].Username)
	}
}

func TestParseICEServersFromValues_JSONWins(t *testing.T) {
	servers, err := parseICEServersFromValues(
		`[{"urls":"stun:json.example.com:3478"}]`,
		"stun:ignored.example.com:3478",
		"", "", "",
		false,
	)
	if err != nil {
		t.Fatalf("parseICEServersFromValues: %v", err)
	}
	if len(servers) != 1 || servers[0].URLs[0] != "stun:json.example.com:3478" {
		t.Fatalf("servers=%v, want the JSON entry only", servers)
	}
}

func TestParseICEServersFromValues_TURNWithoutStaticCredentials(t *testing.T) {
	_, err := parseICEServersFromValues("", "", "turn:turn.example.com:3478", "", "", false)
	if err == nil {
		t.Fatalf("expected error, got nil")
	}

	servers, err := parseICEServersFromValues("", "", "turn:turn.example.com:3478", "", "", true)
	if err != nil {
		t.Fatalf("parseICEServersFromValues: %v", err)
	}
	if len(servers) != 1 {
		t.Fatalf("len=%d, want 1", len(servers))
	}
}
