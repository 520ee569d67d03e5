package notify

import (
	"bytes"
	"fmt"
	"html/template"
)

// The login email renders each digit in its own cell, so the template
// receives the code split into six fields plus the validity window.
type otpEmailData struct {
	FirstName       string
	Digit1          string
	Digit2          string
	Digit3          string
	Digit4          string
	Digit5          string
	Digit6          string
	ValidityMinutes int
}

var otpEmailTemplate = template.Must(template.New("otp").Parse(`<html>
<body>
  <p>Hi {{.FirstName}},</p>
  <p>Use this code to sign in:</p>
  <table><tr>
    <td>{{.Digit1}}</td><td>{{.Digit2}}</td><td>{{.Digit3}}</td>
    <td>{{.Digit4}}</td><td>{{.Digit5}}</td><td>{{.Digit6}}</td>
  </tr></table>
  <p>The code expires in {{.ValidityMinutes}} minutes.</p>
</body>
</html>`))

// RenderOTPEmail produces the subject and HTML body for a login code email.
// The code must be exactly six digits.
func RenderOTPEmail(appName, firstName, code string, validityMinutes int) (subject, html string, err error) {
	if len(code) != 6 {
		return "", "", fmt.Errorf("otp code must be 6 digits, got %d", len(code))
	}
	data := otpEmailData{
		FirstName:       firstName,
		Digit1:          string(code[0]),
		Digit2:          string(code[1]),
		Digit3:          string(code[2]),
		Digit4:          string(code[3]),
		Digit5:          string(code[4]),
		Digit6:          string(code[5]),
		ValidityMinutes: validityMinutes,
	}
	var buf bytes.Buffer
	if err := otpEmailTemplate.Execute(&buf, data); err != nil {
		return "", "", err
	}
	subject = fmt.Sprintf("Your OTP code for %s login is %s", appName, code)
	return subject, buf.String(), nil
}
