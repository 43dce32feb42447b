package speech

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// modelSource names the files of a streaming transducer model.
type modelSource struct {
	baseURL string
	encoder string
	decoder string
	joiner  string
	tokens  string
}

func (m modelSource) files() []string {
	return []string{m.encoder, m.decoder, m.joiner, m.tokens}
}

// Model download locations (Hugging Face)
var models = map[string]modelSource{
	"streaming-zipformer-en-2023-06-26": {
		baseURL: "https://huggingface.co/csukuangfj/sherpa-onnx-streaming-zipformer-en-2023-06-26/resolve/main/",
		encoder: "encoder-epoch-99-avg-1-chunk-16-left-128.onnx",
		decoder: "decoder-epoch-99-avg-1-chunk-16-left-128.onnx",
		joiner:  "joiner-epoch-99-avg-1-chunk-16-left-128.onnx",
		tokens:  "tokens.txt",
	},
	"streaming-zipformer-en-20M-2023-02-17": {
		baseURL: "https://huggingface.co/csukuangfj/sherpa-onnx-streaming-zipformer-en-20M-2023-02-17/resolve/main/",
		encoder: "encoder-epoch-99-avg-1.onnx",
		decoder: "decoder-epoch-99-avg-1.onnx",
		joiner:  "joiner-epoch-99-avg-1.onnx",
		tokens:  "tokens.txt",
	},
}

// DefaultModel is the model used when none is configured.
const DefaultModel = "streaming-zipformer-en-2023-06-26"

// progressWriter wraps an io.Writer to track download progress
type progressWriter struct {
	total      int64
	downloaded int64
	lastLog    time.Time
	file       string
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n := len(p)
	pw.downloaded += int64(n)

	now := time.Now()
	if now.Sub(pw.lastLog) >= 2*time.Second || pw.downloaded >= pw.total {
		pw.lastLog = now
		log.Info().
			Str("file", pw.file).
			Float64("percent", float64(pw.downloaded)/float64(pw.total)*100).
			Float64("downloaded_mb", float64(pw.downloaded)/1024/1024).
			Float64("total_mb", float64(pw.total)/1024/1024).
			Msg("Downloading model")
	}

	return n, nil
}

// ensureModel downloads any missing file of model into dir.
func ensureModel(ctx context.Context, model, dir string) (modelSource, error) {
	src, ok := models[model]
	if !ok {
		return modelSource{}, fmt.Errorf("unknown model: %s", model)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return modelSource{}, fmt.Errorf("failed to create models directory: %w", err)
	}

	for _, name := range src.files() {
		dest := filepath.Join(dir, name)
		if _, err := os.Stat(dest); err == nil {
			continue
		}
		if err := downloadFile(ctx, src.baseURL+name, dest); err != nil {
			return modelSource{}, err
		}
	}
	return src, nil
}

func downloadFile(ctx context.Context, url, destPath string) error {
	tmpPath := destPath + ".tmp"
	defer os.Remove(tmpPath)

	log.Info().Str("url", url).Msg("Starting model download")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download %s: HTTP %d", url, resp.StatusCode)
	}

	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer out.Close()

	var writer io.Writer = out
	if resp.ContentLength > 0 {
		writer = io.MultiWriter(out, &progressWriter{
			total:   resp.ContentLength,
			file:    filepath.Base(destPath),
			lastLog: time.Now(),
		})
	}

	if _, err := io.Copy(writer, resp.Body); err != nil {
		return fmt.Errorf("failed to write model file: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to write model file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to move model file: %w", err)
	}

	log.Info().Str("path", destPath).Msg("Model downloaded successfully")
	return nil
}
