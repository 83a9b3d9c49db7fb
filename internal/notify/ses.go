package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"github.com/ukudarovv/instachecker-sub000/internal/models"
)

// AWSSESNotifier emails the owner about a confirmed profile, attaching the
// evidence snapshot when one exists. Raw MIME is used because the simple
// SendEmail API cannot carry attachments.
type AWSSESNotifier struct {
	sesClient   *ses.Client
	fromAddress string
	logger      *slog.Logger
}

// NewAWSSESNotifier creates a new AWS SES notifier
func NewAWSSESNotifier(region, fromAddress string, logger *slog.Logger) (*AWSSESNotifier, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESNotifier{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		logger:      logger,
	}, nil
}

// NotifyFound sends the confirmation email
func (n *AWSSESNotifier) NotifyFound(ctx context.Context, owner *models.Owner, username, evidencePath string) error {
	raw, err := n.buildMessage(owner.Email, username, evidencePath)
	if err != nil {
		return fmt.Errorf("failed to build notification message: %w", err)
	}

	_, err = n.sesClient.SendRawEmail(ctx, &ses.SendRawEmailInput{
		Source:       &n.fromAddress,
		Destinations: []string{owner.Email},
		RawMessage:   &types.RawMessage{Data: raw},
	})
	if err != nil {
		return fmt.Errorf("failed to send notification email: %w", err)
	}

	n.logger.Info("notification sent",
		slog.String("owner_id", owner.ID),
		slog.String("username", username),
	)

	return nil
}

func (n *AWSSESNotifier) buildMessage(to, username, evidencePath string) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", n.fromAddress)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: Profile found: %s\r\n", username)
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", writer.Boundary())

	textHeader := textproto.MIMEHeader{}
	textHeader.Set("Content-Type", "text/plain; charset=UTF-8")
	part, err := writer.CreatePart(textHeader)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(part, "The profile %q was found and verified.\r\n", username)

	if evidencePath != "" {
		if err := attachFile(writer, evidencePath); err != nil {
			// The result matters more than the attachment
			n.logger.Warn("failed to attach evidence", slog.String("path", evidencePath), slog.Any("error", err))
		}
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func attachFile(writer *multipart.Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	header := textproto.MIMEHeader{}
	header.Set("Content-Type", "text/html; charset=UTF-8")
	header.Set("Content-Transfer-Encoding", "base64")
	header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))

	part, err := writer.CreatePart(header)
	if err != nil {
		return err
	}

	encoded := make([]byte, base64.StdEncoding.EncodedLen(len(data)))
	base64.StdEncoding.Encode(encoded, data)
	_, err = part.Write(encoded)
	return err
}
