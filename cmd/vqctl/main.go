package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/joho/godotenv"
	"github.com/pitabwire/frame/config"

	vqconfig "github.com/voicetyped/voicequery/config"

	"github.com/voicetyped/voicequery/internal/audio"
	"github.com/voicetyped/voicequery/internal/connectutil"
	"github.com/voicetyped/voicequery/internal/pipeline"
	"github.com/voicetyped/voicequery/internal/query"
	"github.com/voicetyped/voicequery/internal/query/prompt"
	"github.com/voicetyped/voicequery/internal/rpc"
	"github.com/voicetyped/voicequery/internal/transcription"
	"github.com/voicetyped/voicequery/internal/transcription/registry"
	"github.com/voicetyped/voicequery/pkg/export"

	_ "github.com/voicetyped/voicequery/internal/transcription/backends/fasterwhisper"
	_ "github.com/voicetyped/voicequery/internal/transcription/backends/openai"
	_ "github.com/voicetyped/voicequery/internal/transcription/backends/whispercpp"
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorRed    = "\033[31m"
)

func info(msg string, a ...any) {
	fmt.Fprintf(os.Stderr, colorBlue+"[info] "+colorReset+msg+"\n", a...)
}

func warn(msg string, a ...any) {
	fmt.Fprintf(os.Stderr, colorYellow+"[warn] "+colorReset+msg+"\n", a...)
}

func ok(msg string, a ...any) {
	fmt.Fprintf(os.Stderr, colorGreen+"[ok] "+colorReset+msg+"\n", a...)
}

func fail(msg string, a ...any) {
	fmt.Fprintf(os.Stderr, colorRed+"[error] "+colorReset+msg+"\n", a...)
}

// output is what vqctl prints to stdout.
type output struct {
	Transcription string          `json:"transcription"`
	Query         json.RawMessage `json:"query,omitempty"`
	Segmented     bool            `json:"segmented"`
	Export        string          `json:"export,omitempty"`
}

// options are the parsed command line flags.
type options struct {
	input      string
	image      string
	language   string
	backend    string
	model      string
	exportFmt  string
	exportDir  string
	noQuery    bool
	server     string
	promptName string
	promptDir  string
}

// parseFlags reads args; defaults come from cfg so flags only override the
// environment.
func parseFlags(fs *flag.FlagSet, args []string, cfg *vqconfig.VoiceQueryConfig) (options, error) {
	var o options
	fs.StringVar(&o.input, "input", "", "Input audio file path (-i)")
	fs.StringVar(&o.input, "i", "", "Input audio file path")
	fs.StringVar(&o.image, "image", "", "Optional product image (png, jpeg, gif)")
	fs.StringVar(&o.language, "language", "", "Spoken language code, empty to auto-detect")
	fs.StringVar(&o.backend, "backend", cfg.ASRBackend, "Transcription backend: openai|whispercpp|fasterwhisper")
	fs.StringVar(&o.model, "model", cfg.WhisperModel, "Transcription model")
	fs.StringVar(&o.exportFmt, "export", "", "Also export the transcript: txt|json|csv")
	fs.StringVar(&o.exportDir, "export-dir", cfg.ExportDir, "Export directory")
	fs.BoolVar(&o.noQuery, "no-query", false, "Transcribe only")
	fs.StringVar(&o.server, "server", "", "Send the audio to a running voicequery service instead of processing locally")
	fs.StringVar(&o.promptName, "prompt", cfg.PromptTemplate, "Prompt template name")
	fs.StringVar(&o.promptDir, "prompt-dir", cfg.PromptDir, "Directory of YAML prompt templates")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.input == "" {
		return o, errors.New("missing --input/-i audio path")
	}
	return o, nil
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.FromEnv[vqconfig.VoiceQueryConfig]()
	if err != nil {
		fail("loading config: %v", err)
		os.Exit(2)
	}

	o, err := parseFlags(flag.CommandLine, os.Args[1:], &cfg)
	if err != nil {
		fail("%v", err)
		os.Exit(2)
	}

	var format export.Format
	if o.exportFmt != "" {
		f, err := export.ParseFormat(o.exportFmt)
		if err != nil {
			fail("%v", err)
			os.Exit(2)
		}
		format = f
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()

	var out output
	if o.server != "" {
		out, err = runRemote(ctx, o)
	} else {
		out, err = runLocal(ctx, &cfg, o)
	}
	if err != nil {
		fail("%v", err)
		os.Exit(1)
	}
	ok("Transcribed %d characters", len(out.Transcription))

	if format != "" {
		base := strings.TrimSuffix(filepath.Base(o.input), filepath.Ext(o.input))
		exp := export.New(o.exportDir)
		path, err := exp.Export(format, out.Transcription, map[string]any{
			"source":  filepath.Base(o.input),
			"backend": o.backend,
			"model":   o.model,
		}, exp.Filename(base, format))
		if err != nil {
			fail("export failed: %v", err)
			os.Exit(1)
		}
		out.Export = path
		ok("Exported transcript: %s", path)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fail("%v", err)
		os.Exit(1)
	}
}

// runLocal processes the file in process with the same engine, segmenting
// and generator settings the service uses.
func runLocal(ctx context.Context, cfg *vqconfig.VoiceQueryConfig, o options) (output, error) {
	engines := registry.NewCache(registry.ASR, cfg.EngineConfig())
	defer engines.Close()

	var gen pipeline.Generator
	if !o.noQuery {
		if cfg.GoogleAPIKey == "" {
			return output{}, errors.New("GOOGLE_API_KEY is required unless -no-query is set")
		}
		prompts := prompt.NewLoader(o.promptDir, o.promptName)
		if _, err := prompts.LoadAll(); err != nil {
			warn("loading prompts: %v", err)
		}
		gen = query.NewGenerator(query.NewClient(cfg.GoogleAPIKey, cfg.GeneratorBaseURL), cfg.GeneratorModel, prompts)
	}

	loader := audio.NewLoader(audio.WithFFmpeg(cfg.FFmpegPath))
	p := pipeline.New(loader, transcription.New(engines, o.backend, o.model), gen,
		pipeline.WithSegmenting(float64(cfg.SegmentThresholdMB), cfg.SegmentSeconds))

	req := pipeline.Request{
		AudioPath: o.input,
		Language:  o.language,
		SkipQuery: o.noQuery,
	}
	if o.image != "" {
		req.Image = query.ImageFromFile(o.image)
	}

	info("Transcribing %s with %s/%s...", o.input, o.backend, o.model)
	resp, err := p.Process(ctx, req)
	if err != nil {
		return output{}, err
	}
	if resp.Segmented {
		info("Input was split into %d segments", len(resp.Segments))
	}

	out := output{Transcription: resp.Transcript, Segmented: resp.Segmented}
	if resp.Query != nil {
		out.Query = resp.Query.JSON()
		if !resp.Query.OK() {
			warn("query generation failed: %s", resp.Query.ErrorMessage())
		}
	}
	return out, nil
}

func runRemote(ctx context.Context, o options) (output, error) {
	data, err := os.ReadFile(o.input)
	if err != nil {
		return output{}, err
	}
	client := rpc.NewQueryServiceClient(http.DefaultClient, o.server, connectutil.DefaultClientOptions()...)

	info("Sending %s to %s...", o.input, o.server)
	if o.noQuery {
		resp, err := client.Transcribe(ctx, connect.NewRequest(&rpc.TranscribeRequest{
			Audio:    data,
			FileName: filepath.Base(o.input),
			Language: o.language,
			Backend:  o.backend,
			Model:    o.model,
		}))
		if err != nil {
			return output{}, err
		}
		return output{Transcription: resp.Msg.Transcription, Segmented: resp.Msg.Segmented}, nil
	}

	req := &rpc.ProcessRequest{
		Audio:    data,
		FileName: filepath.Base(o.input),
		Language: o.language,
		Backend:  o.backend,
		Model:    o.model,
	}
	if o.image != "" {
		if req.Image, err = os.ReadFile(o.image); err != nil {
			return output{}, err
		}
	}
	resp, err := client.Process(ctx, connect.NewRequest(req))
	if err != nil {
		return output{}, err
	}
	if !resp.Msg.OK {
		warn("query generation failed")
	}
	return output{Transcription: resp.Msg.Transcription, Query: resp.Msg.Query, Segmented: resp.Msg.Segmented}, nil
}
