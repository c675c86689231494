package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

const qrContentID = "ticket-qr.png"

var ticketHTML = template.Must(template.New("ticket").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; background-color: #f4f4f7; margin: 0; padding: 24px;">
  <div style="max-width: 600px; margin: 0 auto; background: #ffffff; border-radius: 8px; padding: 32px;">
    <h2 style="color: #1f2937; margin-top: 0;">Votre billet pour {{.EventName}}</h2>
    <p>Bonjour {{.DisplayName}},</p>
    <p>Votre paiement a bien été enregistré. Présentez ce QR code à l'entrée de l'événement.</p>
    <div style="text-align: center; margin: 32px 0;">
      <img src="cid:{{.ContentID}}" alt="QR code du billet" width="260" height="260" />
    </div>
    <p style="text-align: center; font-size: 18px; letter-spacing: 1px;"><strong>{{.TicketCode}}</strong></p>
    <p style="color: #6b7280; font-size: 13px;">Ce billet est personnel et ne peut être utilisé qu'une seule fois.</p>
  </div>
</body>
</html>`))

type ticketView struct {
	Message
	ContentID string
}

func subjectFor(msg Message) string {
	return fmt.Sprintf("Votre billet - %s", msg.EventName)
}

func renderHTML(msg Message) (string, error) {
	var buf bytes.Buffer
	if err := ticketHTML.Execute(&buf, ticketView{Message: msg, ContentID: qrContentID}); err != nil {
		return "", fmt.Errorf("failed to render ticket email: %w", err)
	}
	return buf.String(), nil
}

func renderPlain(msg Message) string {
	return fmt.Sprintf("Bonjour %s,\n\nVotre billet pour %s est joint à ce message.\nCode du billet : %s\n\nPrésentez le QR code à l'entrée. Il ne peut être utilisé qu'une seule fois.\n",
		msg.DisplayName, msg.EventName, msg.TicketCode)
}
