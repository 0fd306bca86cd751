package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/gofiber/fiber/v3"

	"github.com/brightfort/phishguard/pkg/calibration"
	"github.com/brightfort/phishguard/pkg/config"
	"github.com/brightfort/phishguard/pkg/engine"
	"github.com/brightfort/phishguard/pkg/fusion"
	"github.com/brightfort/phishguard/pkg/ml"
	"github.com/brightfort/phishguard/pkg/oracle"
	"github.com/brightfort/phishguard/pkg/page"
	"github.com/brightfort/phishguard/pkg/tabstate"
	"github.com/brightfort/phishguard/pkg/telemetry"
)

const Version = "0.1.0"

// newEngine assembles the risk engine from config. Optional layers
// (oracle, ML, shared cache) degrade gracefully when unconfigured.
func newEngine(cfg *config.Config) *engine.Engine {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}

	calib := calibration.Default()
	if cfg.CalibrationPath != "" {
		loaded, err := calibration.Load(cfg.CalibrationPath)
		if err != nil {
			log.Printf("[WARN] calibration load failed, using built-in defaults: %v", err)
		} else {
			calib = loaded
			log.Printf("✓ calibration table loaded (version %s)", calib.Version)
		}
	}

	var clf *ml.Classifier
	if cfg.EnableML {
		if cfg.ModelPath != "" {
			loaded, err := ml.NewClassifier(cfg.ModelPath, calib)
			if err != nil {
				log.Printf("○ ML classifier disabled (load failed: %v)", err)
			} else {
				clf = loaded
			}
		} else {
			clf = ml.NewAutoDetected(calib)
		}
	}
	if clf.IsReady() {
		log.Println("✓ ML classification enabled (ensemble artifact)")
	} else {
		log.Println("○ ML classification disabled (no model artifact found)")
	}

	var oc *oracle.Client
	if cfg.OracleBaseURL != "" {
		oc = oracle.NewClient(oracle.Options{
			BaseURL:  cfg.OracleBaseURL,
			Timeout:  cfg.OracleTimeout,
			CacheTTL: cfg.OracleCacheTTL,
			Shared:   oracle.NewSharedCache(cfg.RedisAddr),
		})
		log.Printf("✓ external verdict oracle enabled (%s)", cfg.OracleBaseURL)
	} else {
		log.Println("○ external verdict oracle disabled (no URL configured)")
	}

	alerter := tabstate.AlerterFunc(func(tabID string, a fusion.RiskAssessment) {
		log.Printf("[ALERT] tab %s: phishing detected at %s (score %d)", tabID, a.URL, a.CombinedScore)
	})

	return engine.New(engine.Options{
		Calibration: calib,
		Classifier:  clf,
		Oracle:      oc,
		Alerter:     alerter,
		Telemetry:   telemetry.New(),
	})
}

// ============================================================================
// HTTP Server Mode
// ============================================================================

func runHTTPServer(addr string) {
	cfg := config.NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if addr != "" {
		cfg.ListenAddr = addr
	}

	eng := newEngine(cfg)
	defer eng.Close()

	app := fiber.New(fiber.Config{
		AppName: "PhishGuard",
	})

	// Health check
	app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "version": Version, "counters": eng.Telemetry()})
	})

	// Navigation start: mints the token that tags all scoring jobs for
	// this page load.
	app.Post("/v1/navigate", func(c fiber.Ctx) error {
		var req struct {
			TabID string `json:"tabId"`
			URL   string `json:"url"`
		}
		if err := c.Bind().Body(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
		}
		if req.TabID == "" || req.URL == "" {
			return c.Status(400).JSON(fiber.Map{"error": "tabId and url fields are required"})
		}
		token := eng.Navigate(req.TabID, req.URL)
		return c.JSON(fiber.Map{"navigationToken": token})
	})

	// Full page scan for the current navigation.
	app.Post("/v1/scan", func(c fiber.Ctx) error {
		var req struct {
			TabID           string        `json:"tabId"`
			NavigationToken string        `json:"navigationToken"`
			URL             string        `json:"url"`
			Content         *page.Content `json:"content"`
		}
		if err := c.Bind().Body(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
		}
		if req.TabID == "" || req.NavigationToken == "" || req.URL == "" {
			return c.Status(400).JSON(fiber.Map{"error": "tabId, navigationToken, and url fields are required"})
		}
		out := eng.ScanPage(c.Context(), req.TabID, req.NavigationToken, req.URL, req.Content)
		if !out.Applied {
			return c.Status(409).JSON(fiber.Map{"error": "stale navigation token", "applied": false})
		}
		return c.JSON(out)
	})

	// Runtime observation stream from the instrumentation collaborator.
	app.Post("/v1/events", func(c fiber.Ctx) error {
		var req struct {
			TabID           string               `json:"tabId"`
			NavigationToken string               `json:"navigationToken"`
			Events          []page.ObservedEvent `json:"events"`
		}
		if err := c.Bind().Body(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
		}
		if req.TabID == "" || req.NavigationToken == "" {
			return c.Status(400).JSON(fiber.Map{"error": "tabId and navigationToken fields are required"})
		}
		out := eng.RecordEvents(c.Context(), req.TabID, req.NavigationToken, req.Events)
		if !out.Applied {
			return c.Status(409).JSON(fiber.Map{"error": "stale navigation token", "applied": false})
		}
		return c.JSON(out)
	})

	// Per-tab status query.
	app.Get("/v1/tabs/:id", func(c fiber.Ctx) error {
		st, ok := eng.TabStatus(c.Params("id"))
		if !ok {
			return c.Status(404).JSON(fiber.Map{"error": "unknown tab"})
		}
		return c.JSON(st)
	})

	// Tab close: discards all per-tab state.
	app.Delete("/v1/tabs/:id", func(c fiber.Ctx) error {
		eng.CloseTab(c.Params("id"))
		return c.JSON(fiber.Map{"closed": true})
	})

	log.Printf("[STARTUP] PhishGuard v%s listening on %s", Version, cfg.ListenAddr)
	if err := app.Listen(cfg.ListenAddr); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// ============================================================================
// CLI Mode
// ============================================================================

func runCLIScan(rawURL, contentPath string) {
	cfg := config.NewDefaultConfig()
	eng := newEngine(cfg)
	defer eng.Close()

	var content *page.Content
	if contentPath != "" {
		raw, err := os.ReadFile(contentPath)
		if err != nil {
			log.Fatalf("read content file: %v", err)
		}
		content = &page.Content{}
		if err := json.Unmarshal(raw, content); err != nil {
			log.Fatalf("parse content file: %v", err)
		}
	}

	token := eng.Navigate("cli", rawURL)
	out := eng.ScanPage(context.Background(), "cli", token, rawURL, content)

	encoded, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(encoded))
}

func main() {
	// Setup logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "serve":
		addr := ""
		if len(os.Args) > 2 {
			addr = os.Args[2]
		}
		runHTTPServer(addr)
	case "scan":
		if len(os.Args) < 3 {
			fmt.Println("Usage: phishguard scan <url> [content.json]")
			os.Exit(1)
		}
		contentPath := ""
		if len(os.Args) > 3 {
			contentPath = os.Args[3]
		}
		runCLIScan(os.Args[2], contentPath)
	case "version":
		fmt.Printf("PhishGuard v%s\n", Version)
		fmt.Println("Multi-Signal Phishing Risk Engine")
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf("PhishGuard v%s - Multi-Signal Phishing Risk Engine\n\n", Version)
	fmt.Println("Usage:")
	fmt.Println("  phishguard serve [addr]            Start HTTP server (default: :8843)")
	fmt.Println("  phishguard scan <url> [page.json]  Scan a URL, optionally with scraped page content")
	fmt.Println("  phishguard version                 Show version")
	fmt.Println("")
	fmt.Println("Examples:")
	fmt.Println("  phishguard serve :8080")
	fmt.Println("  phishguard scan https://login-secure-verify.example.top page.json")
	fmt.Println("")
	fmt.Println("Environment Variables:")
	fmt.Println("  PHISHGUARD_ORACLE_URL   External verdict service base URL")
	fmt.Println("  PHISHGUARD_MODEL_PATH   Path to the serialized ensemble artifact")
	fmt.Println("  PHISHGUARD_REDIS_ADDR   Redis address for the shared verdict cache")
	fmt.Println("  PHISHGUARD_CALIBRATION  Calibration table YAML overriding built-in defaults")
}
