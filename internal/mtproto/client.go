// Package mtproto downloads files through a bot MTProto session. The Bot API refuses
// files above 20 MB, MTProto does not.
package mtproto

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"photo-intake-bot/internal/mtproto/internal"
	"photo-intake-bot/internal/pkg/config"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/tg"
)

const partSize = 512 * 1024

type Client struct {
	api        *tg.Client
	downloader *downloader.Downloader
	cancel     context.CancelFunc
	done       chan struct{}
	ready      chan struct{}
}

func NewClient(ctx context.Context, cfg *config.MTProtoCfg, botToken string) (*Client, error) {
	client := &Client{
		done:  make(chan struct{}),
		ready: make(chan struct{}),
	}

	clientCtx, cancel := context.WithCancel(context.Background())
	client.cancel = cancel

	mtprotoClient := telegram.NewClient(cfg.AppID, cfg.AppHash, telegram.Options{})

	go func() {
		defer close(client.done)

		err := mtprotoClient.Run(clientCtx, func(ctx context.Context) error {
			if _, err := mtprotoClient.Auth().Bot(ctx, botToken); err != nil {
				return fmt.Errorf("auth failed: %w", err)
			}

			client.api = tg.NewClient(mtprotoClient)
			client.downloader = downloader.NewDownloader().WithPartSize(partSize)
			close(client.ready)

			<-ctx.Done()
			return ctx.Err()
		})
		if err != nil && clientCtx.Err() == nil {
			slog.Error("MTProto client stopped", "error", err)
		}
	}()

	select {
	case <-client.ready:
		slog.Info("MTProto client ready")
		return client, nil
	case <-client.done:
		cancel()
		return nil, fmt.Errorf("mtproto client exited during startup")
	case <-time.After(30 * time.Second):
		cancel()
		return nil, fmt.Errorf("client initialization timeout")
	case <-ctx.Done():
		cancel()
		return nil, ctx.Err()
	}
}

// DownloadFile streams the file behind a Bot API file_id into dst.
func (c *Client) DownloadFile(ctx context.Context, fileID string, dst io.Writer) error {
	location, err := Location(fileID)
	if err != nil {
		return err
	}
	_, err = c.downloader.Download(c.api, location).Stream(ctx, dst)
	return err
}

// Location maps a Bot API file_id of a photo or document to its MTProto location.
func Location(fileID string) (tg.InputFileLocationClass, error) {
	info, err := internal.ParseFileID(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse file id: %w", err)
	}

	switch info.Type {
	case internal.IDPhoto:
		return &tg.InputPhotoFileLocation{
			ID:            info.ID,
			AccessHash:    info.AccessHash,
			FileReference: info.FileReference,
			ThumbSize:     info.ThumbSize,
		}, nil
	case internal.IDDocument:
		return &tg.InputDocumentFileLocation{
			ID:            info.ID,
			AccessHash:    info.AccessHash,
			FileReference: info.FileReference,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported file type %d", info.Type)
	}
}

func (c *Client) Close() error {
	c.cancel()
	<-c.done
	return nil
}
