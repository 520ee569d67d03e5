package notify

import (
	"strings"
	"testing"
)

func TestRenderOTPEmail(t *testing.T) {
	subject, html, err := RenderOTPEmail("Test App", "Jane", "483920", 10)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if subject != "Your OTP code for Test App login is 483920" {
		t.Fatalf("unexpected subject %q", subject)
	}
	for _, digit := range []string{"<td>4</td>", "<td>8</td>", "<td>3</td>", "<td>9</td>", "<td>2</td>", "<td>0</td>"} {
		if !strings.Contains(html, digit) {
			t.Fatalf("body missing %s:\n%s", digit, html)
		}
	}
	if !strings.Contains(html, "Hi Jane,") {
		t.Fatal("body missing greeting")
	}
	if !strings.Contains(html, "expires in 10 minutes") {
		t.Fatal("body missing validity window")
	}
}

func TestRenderOTPEmailRejectsBadLength(t *testing.T) {
	if _, _, err := RenderOTPEmail("App", "Jane", "12345", 10); err == nil {
		t.Fatal("expected error for 5 digit code")
	}
	if _, _, err := RenderOTPEmail("App", "Jane", "1234567", 10); err == nil {
		t.Fatal("expected error for 7 digit code")
	}
}

func TestRenderOTPEmailEscapesName(t *testing.T) {
	_, html, err := RenderOTPEmail("App", "<script>alert(1)</script>", "123456", 10)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(html, "<script>") {
		t.Fatal("first name must be HTML escaped")
	}
}
