// Builtin tools for CLI sessions.

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tessello/tessello/tools"
)

const (
	maxFileBytes   = 256 * 1024
	maxBodyBytes   = 256 * 1024
	httpTimeout    = 30 * time.Second
	httpCacheSize  = 64
	httpCacheTTL   = 5 * time.Minute
	timeToolFormat = time.RFC3339
)

// DefaultCapabilities grants host access with the current directory as workspace.
func DefaultCapabilities() tools.Capabilities {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	return tools.Capabilities{HostAvailable: true, Workspace: wd}
}

// RegisterBuiltins registers the builtin tool set on a registry. Tools that
// need host access are skipped when caps does not grant it.
func RegisterBuiltins(registry *tools.Registry, caps tools.Capabilities) {
	registry.Register(currentTimeTool())
	registry.Register(readFileTool(caps))
	if caps.HostAvailable {
		registry.Register(httpGetTool())
	}
}

func currentTimeTool() tools.Tool {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"timezone": map[string]any{
				"type":        "string",
				"description": "IANA timezone name, e.g. Europe/Berlin. Defaults to UTC.",
			},
		},
	}
	return tools.NewFunc("current_time", "Get the current date and time.", params,
		func(ctx context.Context, callID string, args json.RawMessage, progress tools.ProgressFunc) (tools.Result, error) {
			var in struct {
				Timezone string `json:"timezone"`
			}
			if len(args) > 0 {
				if err := json.Unmarshal(args, &in); err != nil {
					return tools.Result{}, fmt.Errorf("invalid arguments: %w", err)
				}
			}
			loc := time.UTC
			if in.Timezone != "" {
				l, err := time.LoadLocation(in.Timezone)
				if err != nil {
					return tools.Result{}, fmt.Errorf("unknown timezone %q: %w", in.Timezone, err)
				}
				loc = l
			}
			return tools.TextResult(callID, time.Now().In(loc).Format(timeToolFormat)), nil
		})
}

func readFileTool(caps tools.Capabilities) tools.Tool {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Path of the file to read.",
			},
		},
		"required": []string{"path"},
	}
	return tools.NewFunc("read_file", "Read a text file from disk.", params,
		func(ctx context.Context, callID string, args json.RawMessage, progress tools.ProgressFunc) (tools.Result, error) {
			var in struct {
				Path string `json:"path"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return tools.Result{}, fmt.Errorf("invalid arguments: %w", err)
			}
			if in.Path == "" {
				return tools.Result{}, fmt.Errorf("path is required")
			}
			path := in.Path
			if !filepath.IsAbs(path) && caps.Workspace != "" {
				path = filepath.Join(caps.Workspace, path)
			}
			if !caps.HostAvailable && caps.Workspace != "" {
				abs, err := filepath.Abs(path)
				if err != nil {
					return tools.Result{}, err
				}
				if !strings.HasPrefix(abs, filepath.Clean(caps.Workspace)+string(filepath.Separator)) {
					return tools.Result{}, fmt.Errorf("path %q is outside the workspace", in.Path)
				}
			}
			if progress != nil {
				progress("reading " + path)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return tools.Result{}, err
			}
			if len(data) > maxFileBytes {
				data = data[:maxFileBytes]
			}
			return tools.TextResult(callID, string(data)), nil
		})
}

func httpGetTool() tools.Tool {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "URL to fetch.",
			},
		},
		"required": []string{"url"},
	}
	cache := tools.NewCache(httpCacheSize, httpCacheTTL, nil)
	return tools.NewFunc("http_get", "Fetch a URL over HTTP GET.", params,
		func(ctx context.Context, callID string, args json.RawMessage, progress tools.ProgressFunc) (tools.Result, error) {
			var in struct {
				URL string `json:"url"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return tools.Result{}, fmt.Errorf("invalid arguments: %w", err)
			}
			if in.URL == "" {
				return tools.Result{}, fmt.Errorf("url is required")
			}
			if body, ok := cache.Get(in.URL); ok {
				res := tools.TextResult(callID, body)
				res.Details = map[string]any{"cached": true}
				return res, nil
			}
			if progress != nil {
				progress("GET " + in.URL)
			}

			reqCtx, cancel := context.WithTimeout(ctx, httpTimeout)
			defer cancel()
			req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, in.URL, nil)
			if err != nil {
				return tools.Result{}, err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return tools.Result{}, err
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
			if err != nil {
				return tools.Result{}, err
			}

			res := tools.TextResult(callID, string(body))
			res.Details = map[string]any{
				"status":       resp.StatusCode,
				"content_type": resp.Header.Get("Content-Type"),
			}
			res.IsError = resp.StatusCode >= 400
			if !res.IsError {
				cache.Set(in.URL, string(body))
			}
			return res, nil
		})
}
