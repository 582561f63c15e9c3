package file

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/go-telegram/bot"
)

// BotAPIFileLimit is the largest file the Bot API lets a bot download.
const BotAPIFileLimit = 20 * 1024 * 1024

type Downloader interface {
	DownloadFile(ctx context.Context, fileID string, dst io.Writer) error
}

type TelegramDownloader struct {
	api    *bot.Bot
	client *http.Client
}

func NewTelegramDownloader(api *bot.Bot, client *http.Client) *TelegramDownloader {
	return &TelegramDownloader{api: api, client: client}
}

func (d *TelegramDownloader) DownloadFile(ctx context.Context, fileID string, dst io.Writer) error {
	file, err := d.api.GetFile(ctx, &bot.GetFileParams{
		FileID: fileID,
	})
	if err != nil {
		return fmt.Errorf("get file: %w", err)
	}
	if file.FileSize > BotAPIFileLimit {
		return ErrFileTooLarge
	}

	link := d.api.FileDownloadLink(file)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	_, err = io.Copy(dst, resp.Body)
	return err
}
