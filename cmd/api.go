package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/desertthunder/apostle/internal/services"
	"github.com/desertthunder/apostle/internal/shared"
	"github.com/desertthunder/apostle/internal/tasks"
	"github.com/urfave/cli/v3"
)

func apiPath(cmd *cli.Command) (string, error) {
	path := cmd.StringArg("path")
	if path == "" {
		return "", fmt.Errorf("%w: path", shared.ErrMissingArgument)
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path, nil
}

// writeResponse prints a raw response body, re-indenting JSON unless compact output was asked for.
func (r *Runner) writeResponse(resp *services.APIResponse, compact bool) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d, body: %s", shared.ErrAPIRequest, resp.StatusCode, string(resp.Body))
	}
	if resp.Cached() {
		r.logger.Debug("served from cache")
	}

	if resp.IsJSON {
		return r.writeJSON(resp.JSONData, !compact)
	}

	r.output.Write(resp.Body)
	r.output.Write([]byte("\n"))
	return nil
}

// APIGet makes a direct GET request to the admin API
func (r *Runner) APIGet(ctx context.Context, cmd *cli.Command) error {
	path, err := apiPath(cmd)
	if err != nil {
		return err
	}

	r.logger.Info("GET request", "path", path)

	resp, err := r.client.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	return r.writeResponse(resp, cmd.Bool("json") && !cmd.Bool("pretty"))
}

// APIPost makes a direct POST request to the admin API
func (r *Runner) APIPost(ctx context.Context, cmd *cli.Command) error {
	path, err := apiPath(cmd)
	if err != nil {
		return err
	}

	data := []byte(cmd.String("data"))
	if file := cmd.String("file"); file != "" {
		if len(data) > 0 {
			return fmt.Errorf("%w: cannot specify both --data and --file", shared.ErrInvalidArgument)
		}
		if data, err = os.ReadFile(file); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
		}
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: --data or --file is required", shared.ErrMissingArgument)
	}

	var jsonTest any
	if err := json.Unmarshal(data, &jsonTest); err != nil {
		return fmt.Errorf("%w: data is not valid JSON: %v", shared.ErrInvalidInput, err)
	}

	r.logger.Info("POST request", "path", path)

	resp, err := r.client.Post(ctx, path, data)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	return r.writeResponse(resp, cmd.Bool("json") && !cmd.Bool("pretty"))
}

// APIDump fetches every content endpoint and prints or saves the combined document.
func (r *Runner) APIDump(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireCredential(); err != nil {
		return err
	}

	r.logger.Info("dumping API state", "api", r.baseURL)

	progress := make(chan tasks.ProgressUpdate, 10)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.logger.Infof("[%d/%d] %s", update.Step, update.Total, update.Message)
		}
	}()

	result, err := r.engine.Dump(ctx, progress)
	close(progress)
	<-done
	if err != nil {
		return err
	}

	for _, e := range result.Errors {
		r.logger.Warn("endpoint failed", "endpoint", e.Endpoint, "error", e.Error)
	}

	if output := cmd.String("output"); output != "" {
		data, err := shared.MarshalJSON(result.Data(), cmd.Bool("pretty"))
		if err != nil {
			return fmt.Errorf("failed to marshal dump: %w", err)
		}
		if err := os.WriteFile(output, data, 0644); err != nil {
			return fmt.Errorf("failed to write dump: %w", err)
		}
		return r.writePlain("✓ Dump saved to %s\n", output)
	}

	return r.writeJSON(result.Data(), cmd.Bool("pretty"))
}
