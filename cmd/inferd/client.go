package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"inferd/pkg/types"
)

// daemonURL normalizes --addr into a base URL. Bare ":8080" means localhost.
func daemonURL(opts *rootOpts) string {
	addr := opts.Addr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	return strings.TrimRight(addr, "/")
}

var daemonClient = &http.Client{Timeout: 60 * time.Second}

func doJSON(method, url string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := daemonClient.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp types.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&errResp) == nil && errResp.Error != "" {
			return fmt.Errorf("%s (HTTP %d)", errResp.Error, resp.StatusCode)
		}
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func runModelsList(opts *rootOpts) error {
	var list types.ModelsResponse
	if err := doJSON(http.MethodGet, daemonURL(opts)+"/models", nil, &list); err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSIZE\tLAST ACCESS")
	for _, m := range list.Models {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", m.ID, m.DisplayName, m.SizeBytes,
			m.LastAccessedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func runModelsAdd(opts *rootOpts, id, file, displayName string, capabilities []string) error {
	artifact, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	body := map[string]any{
		"display_name": displayName,
		"capabilities": capabilities,
		"artifact_b64": artifact, // []byte marshals as base64
	}
	var rec types.ModelRecord
	if err := doJSON(http.MethodPut, daemonURL(opts)+"/models/"+id, body, &rec); err != nil {
		return err
	}
	fmt.Printf("stored %s (%d bytes)\n", rec.ID, rec.SizeBytes)
	return nil
}

func runModelsRm(opts *rootOpts, id string) error {
	if err := doJSON(http.MethodDelete, daemonURL(opts)+"/models/"+id, nil, nil); err != nil {
		return err
	}
	fmt.Printf("removed %s\n", id)
	return nil
}

func runStatus(opts *rootOpts) error {
	var st types.StatusResponse
	if err := doJSON(http.MethodGet, daemonURL(opts)+"/status", nil, &st); err != nil {
		return err
	}
	fmt.Printf("uptime:        %ds\n", st.UptimeSeconds)
	fmt.Printf("stored models: %d\n", st.StoredModels)
	fmt.Printf("disk usage:    %d / %d bytes\n", st.UsedBytes, st.QuotaBytes)
	fmt.Printf("evictions:     %d\n", st.EvictionsTotal)
	fmt.Printf("loads:         %d\n", st.LoadsTotal)
	fmt.Printf("queued tasks:  %d\n", st.QueuedTasks)
	fmt.Printf("pool:          %d free / %d in use\n", st.Pool.Free, st.Pool.InUse)
	for _, r := range st.Residents {
		fmt.Printf("resident:      %s (accessed %d times)\n", r.ModelID, r.AccessCount)
	}
	if st.LastError != "" {
		fmt.Printf("last error:    %s\n", st.LastError)
	}
	return nil
}

func runInfer(opts *rootOpts, model, input string) error {
	var resp types.InferResponse
	req := types.InferRequest{Model: model, Input: input}
	if err := doJSON(http.MethodPost, daemonURL(opts)+"/infer", req, &resp); err != nil {
		return err
	}
	fmt.Println(resp.Output)
	return nil
}
