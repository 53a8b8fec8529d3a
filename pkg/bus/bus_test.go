package bus

import (
	"testing"
)

func TestConfig_WithDefaults(t *testing.T) {
	c := Config{}.WithDefaults()
	if c.URL != DefaultURL {
		t.Errorf("URL = %q, want %q", c.URL, DefaultURL)
	}
	if c.EventsSubject != DefaultEventsSubject {
		t.Errorf("EventsSubject = %q, want %q", c.EventsSubject, DefaultEventsSubject)
	}
	if c.StatusPrefix != DefaultStatusPrefix {
		t.Errorf("StatusPrefix = %q, want %q", c.StatusPrefix, DefaultStatusPrefix)
	}

	custom := Config{URL: "nats://bus:4222", EventsSubject: "ev", StatusPrefix: "st"}.WithDefaults()
	if custom.URL != "nats://bus:4222" || custom.EventsSubject != "ev" || custom.StatusPrefix != "st" {
		t.Errorf("WithDefaults overwrote explicit values: %+v", custom)
	}
}

func TestConfig_Token(t *testing.T) {
	t.Setenv("TEST_BUS_TOKEN", "s3cret")
	if got := (Config{TokenEnv: "TEST_BUS_TOKEN"}).Token(); got != "s3cret" {
		t.Errorf("Token() = %q, want s3cret", got)
	}
	if got := (Config{}).Token(); got != "" {
		t.Errorf("Token() with no env = %q, want empty", got)
	}
}

func TestStatusSubject(t *testing.T) {
	tests := []struct {
		prefix, topic, want string
	}{
		{"status", "isp.monitor", "status.isp.monitor"},
		{"status.", "lan", "status.lan"},
	}
	for _, tc := range tests {
		if got := StatusSubject(tc.prefix, tc.topic); got != tc.want {
			t.Errorf("StatusSubject(%q, %q) = %q, want %q", tc.prefix, tc.topic, got, tc.want)
		}
	}
}

func TestDecodeEvent(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"tag":"ISP.toPrimary","source":"monitor.isp","type":"ISP.toPrimary",
		"subject":"s","message":"m","level":9,"timestamp":1700000000000}`))
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	if ev.Tag != "ISP.toPrimary" || ev.Level != 9 {
		t.Errorf("decoded %+v", ev)
	}
	if ev.Time().UnixMilli() != 1700000000000 {
		t.Errorf("Time() = %v", ev.Time())
	}
}

func TestDecodeEvent_Invalid(t *testing.T) {
	cases := map[string]string{
		"not json":    `{`,
		"missing tag": `{"level":3}`,
		"level high":  `{"tag":"x","level":10}`,
		"level low":   `{"tag":"x","level":-1}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodeEvent([]byte(body)); err == nil {
				t.Errorf("DecodeEvent(%s): expected error", body)
			}
		})
	}
}

func TestDecodeStatus(t *testing.T) {
	st, err := DecodeStatus([]byte(`{"topic":"lan.monitor","fields":{"monitor.lan.messageIntervalMs":60000},"timestamp":5}`))
	if err != nil {
		t.Fatalf("DecodeStatus: %v", err)
	}
	if st.Topic != "lan.monitor" {
		t.Errorf("Topic = %q", st.Topic)
	}
	if v, ok := st.Fields["monitor.lan.messageIntervalMs"].(float64); !ok || v != 60000 {
		t.Errorf("Fields = %#v", st.Fields)
	}
}
