package mailer

import mailtpl "github.com/oksasatya/go-account-identity/pkg/mailer/templates"

func renderTemplate(name string, data map[string]any) (string, string, string, error) {
	return mailtpl.Render(name, data)
}
