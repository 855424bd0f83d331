package mailer

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"book-digest/models"
	"book-digest/utils"
)

func sampleDigest() *models.Digest {
	return &models.Digest{
		Subject:   "📚 Latest Books from Publishers",
		PlainText: "Latest books available.",
		HTML:      `<html><body><img src="cid:abc@book-digest"></body></html>`,
		Entries:   []models.DigestEntry{{Title: "Dune", ContentID: "abc@book-digest"}},
		Attachments: []models.Attachment{{
			ContentID:   "abc@book-digest",
			Filename:    "Tor_Books_کتاب.png",
			ContentType: "image/png",
			Data:        bytes.Repeat([]byte{0x89, 'P', 'N', 'G'}, 40),
		}},
	}
}

func TestBuildMessageStructure(t *testing.T) {
	d := sampleDigest()
	built, err := BuildMessage("bot@example.com", "reader@example.com", d, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))
	require.NoError(t, err)
	var raw bytes.Buffer
	_, err = built.WriteTo(&raw)
	require.NoError(t, err)

	msg, err := mail.ReadMessage(&raw)
	require.NoError(t, err)
	to, err := mail.ParseAddress(msg.Header.Get("To"))
	require.NoError(t, err)
	require.Equal(t, "reader@example.com", to.Address)
	date, err := msg.Header.Date()
	require.NoError(t, err)
	require.True(t, date.Equal(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)))

	subject, err := new(mime.WordDecoder).DecodeHeader(msg.Header.Get("Subject"))
	require.NoError(t, err)
	require.Equal(t, d.Subject, subject)

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "multipart/related", mediaType)

	related := multipart.NewReader(msg.Body, params["boundary"])

	altPart, err := related.NextPart()
	require.NoError(t, err)
	altType, altParams, err := mime.ParseMediaType(altPart.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "multipart/alternative", altType)

	alt := multipart.NewReader(altPart, altParams["boundary"])
	plain, err := alt.NextPart()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(plain.Header.Get("Content-Type"), "text/plain"))
	text, err := io.ReadAll(plain)
	require.NoError(t, err)
	require.Equal(t, d.PlainText, string(text))

	html, err := alt.NextPart()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(html.Header.Get("Content-Type"), "text/html"))
	body, err := io.ReadAll(html)
	require.NoError(t, err)
	require.Equal(t, d.HTML, string(body))

	img, err := related.NextPart()
	require.NoError(t, err)
	require.Equal(t, "abc@book-digest", strings.Trim(img.Header.Get("Content-Id"), "<>"))
	require.True(t, strings.HasPrefix(img.Header.Get("Content-Type"), "image/png"))
	require.Equal(t, "base64", strings.ToLower(img.Header.Get("Content-Transfer-Encoding")))
	disposition, dispParams, err := mime.ParseMediaType(img.Header.Get("Content-Disposition"))
	require.NoError(t, err)
	require.Equal(t, "inline", disposition)
	filename, err := new(mime.WordDecoder).DecodeHeader(dispParams["filename"])
	require.NoError(t, err)
	require.Equal(t, "Tor_Books_کتاب.png", filename)

	encoded, err := io.ReadAll(img)
	require.NoError(t, err)
	for _, line := range strings.Split(strings.TrimSpace(string(encoded)), "\r\n") {
		require.LessOrEqual(t, len(line), 76)
	}
	data, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(string(encoded)), ""))
	require.NoError(t, err)
	require.Equal(t, d.Attachments[0].Data, data)

	_, err = related.NextPart()
	require.ErrorIs(t, err, io.EOF)
}

// fakeSMTP accepts one unauthenticated session and returns the DATA payload.
func fakeSMTP(t *testing.T) (addr string, received <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	out := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		reply := func(s string) { io.WriteString(conn, s+"\r\n") }

		reply("220 fake ESMTP")
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			cmd := strings.ToUpper(strings.TrimSpace(line))
			switch {
			case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
				reply("250 fake")
			case strings.HasPrefix(cmd, "MAIL"), strings.HasPrefix(cmd, "RCPT"),
				cmd == "NOOP", cmd == "RSET":
				reply("250 OK")
			case cmd == "DATA":
				reply("354 go ahead")
				var data strings.Builder
				for {
					l, err := r.ReadString('\n')
					if err != nil {
						return
					}
					if l == ".\r\n" {
						break
					}
					data.WriteString(l)
				}
				out <- data.String()
				reply("250 queued")
			case cmd == "QUIT":
				reply("221 bye")
				return
			default:
				reply("502 unknown")
			}
		}
	}()
	return ln.Addr().String(), out
}

func TestPublishDeliversMessage(t *testing.T) {
	addr, received := fakeSMTP(t)
	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)

	p, err := strconv.Atoi(port)
	require.NoError(t, err)

	m := New(Config{Host: host, Port: p, Sender: "bot@example.com", Timeout: 5 * time.Second}, utils.NewLoggerTo(io.Discard, "error"))
	require.NoError(t, m.Publish(context.Background(), "reader@example.com", sampleDigest()))

	select {
	case data := <-received:
		msg, err := mail.ReadMessage(strings.NewReader(data))
		require.NoError(t, err)
		to, err := mail.ParseAddress(msg.Header.Get("To"))
		require.NoError(t, err)
		require.Equal(t, "reader@example.com", to.Address)
		require.Contains(t, data, "<abc@book-digest>")
	case <-time.After(5 * time.Second):
		t.Fatal("no message received")
	}
}

func TestPublishRequiresRecipient(t *testing.T) {
	m := New(Config{Host: "localhost", Port: 25, Sender: "bot@example.com"}, utils.NewLoggerTo(io.Discard, "error"))
	require.Error(t, m.Publish(context.Background(), "", sampleDigest()))
}

func TestBuildMessageWithoutImages(t *testing.T) {
	d := sampleDigest()
	d.Attachments = nil
	built, err := BuildMessage("bot@example.com", "reader@example.com", d, time.Now())
	require.NoError(t, err)
	var raw bytes.Buffer
	_, err = built.WriteTo(&raw)
	require.NoError(t, err)

	msg, err := mail.ReadMessage(&raw)
	require.NoError(t, err)
	mediaType, _, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "multipart/alternative", mediaType)
}

func TestBuildMessageRejectsBadSender(t *testing.T) {
	_, err := BuildMessage("not an address", "reader@example.com", sampleDigest(), time.Now())
	require.ErrorContains(t, err, "sender")
}
