package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"event-translator/internal/batch"
	"event-translator/internal/cache"
	"event-translator/internal/config"
	"event-translator/internal/escapes"
	"event-translator/internal/export"
	"event-translator/internal/extract"
	"event-translator/internal/reinsert"
	"event-translator/internal/store"
	"event-translator/internal/textutil"
	"event-translator/internal/translate"
	"event-translator/internal/worker"
)

// Execute runs the CLI application.
func Execute() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	rootCmd := &cobra.Command{
		Use:   "event-translator",
		Short: "Dialogue extraction and reinsertion for game event scripts",
		Long: `Extracts dialogue from game event scripts into a translation document,
drives the translation step, and splices translated text back into the
scripts reversibly.`,
	}

	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(translateCmd())
	rootCmd.AddCommand(importCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <scripts-dir>",
		Short: "Extract dialogue from all scripts into a translation document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outPath, _ := cmd.Flags().GetString("output")
			ignoreMarkers, _ := cmd.Flags().GetBool("ignore-markers")
			return runExport(args[0], outPath, ignoreMarkers)
		},
	}
	cmd.Flags().String("output", "untranslated.json", "Output path for the translation document")
	cmd.Flags().Bool("ignore-markers", false, "Export in-game text verbatim, ignoring original-text markers left by a previous import")
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <scripts-dir> <translated-json>",
		Short: "Splice translated text back into the scripts",
		Long: `Applies a translated document to every script it has a section for.
Blocks whose translation was removed from the document are rolled back
to their original text. A script file is rewritten only when something
actually changed.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			strict, _ := cmd.Flags().GetBool("strict-markers")
			return runImport(args[0], args[1], strict)
		},
	}
	cmd.Flags().Bool("strict-markers", false, "Skip blocks with undecodable markers instead of reconstructing from current text")
	return cmd
}

func translateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "translate <untranslated-json>",
		Short: "Translate an exported document via the Gemini API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outPath, _ := cmd.Flags().GetString("output")
			return runTranslate(args[0], outPath)
		},
	}
	cmd.Flags().String("output", "translated.json", "Output path for the translated document")
	return cmd
}

// setupContext creates a cancellable context with signal handling.
func setupContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		log.Warn().Msg("Received shutdown signal, cancelling...")
		cancel()
	}()

	return ctx, cancel
}

// runExport handles the `export` command.
func runExport(scriptsDir, outPath string, ignoreMarkers bool) error {
	ctx, cancel := setupContext()
	defer cancel()

	cfg := config.Load()
	st := store.NewFSStore(scriptsDir)

	extractor := batch.NewExtractor(st, cfg.WorkerCount, extract.Options{
		RecoverOriginals: !ignoreMarkers,
	})

	builder, report, err := extractor.Run(ctx)
	if err != nil {
		return fmt.Errorf("extraction run: %w", err)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer out.Close()

	if err := builder.Encode(out); err != nil {
		return err
	}

	log.Info().
		Str("run", report.RunID).
		Int("scripts", report.Scripts).
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed()).
		Int("entries", builder.Len()).
		Str("output", outPath).
		Msg("Export complete")

	if report.Failed() > 0 {
		log.Warn().Int("failed", report.Failed()).Msg("Some scripts were skipped; see errors above")
	}
	return nil
}

// runImport handles the `import` command.
func runImport(scriptsDir, translationsPath string, strict bool) error {
	ctx, cancel := setupContext()
	defer cancel()

	cfg := config.Load()

	in, err := os.Open(translationsPath)
	if err != nil {
		return fmt.Errorf("open translated document: %w", err)
	}
	translations, err := export.ParseTranslations(in)
	in.Close()
	if err != nil {
		return err
	}

	st := store.NewFSStore(scriptsDir)
	engine := reinsert.New(reinsert.Options{
		SkipOnBadMarker: strict || cfg.StrictMarkers,
	})

	importer := batch.NewImporter(st, engine, cfg.WorkerCount)
	report, err := importer.Run(ctx, translations)
	if err != nil {
		return fmt.Errorf("import run: %w", err)
	}

	log.Info().
		Str("run", report.RunID).
		Int("scripts", report.Scripts).
		Int("succeeded", report.Succeeded).
		Int("skipped", report.Skipped).
		Int("changed", report.Changed).
		Int("failed", report.Failed()).
		Msg("Import complete")

	if report.Failed() > 0 {
		return fmt.Errorf("%d script(s) failed; their files were left untouched", report.Failed())
	}
	return nil
}

// runTranslate handles the `translate` command.
func runTranslate(inPath, outPath string) error {
	ctx, cancel := setupContext()
	defer cancel()

	cfg := config.Load()
	if cfg.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is not set")
	}

	in, err := os.Open(inPath)
	if err != nil {
		return fmt.Errorf("open export document: %w", err)
	}
	doc, err := export.ParseDocument(in)
	in.Close()
	if err != nil {
		return err
	}

	translationCache, err := cache.Open(cfg.CachePath)
	if err != nil {
		return err
	}
	defer translationCache.Close()

	if err := translationCache.Preload(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to preload cache")
	}

	// Collect deduplicated texts needing translation.
	seen := make(map[string]struct{})
	var items []translate.Item
	for script := doc.Oldest(); script != nil; script = script.Next() {
		for pair := script.Value.Oldest(); pair != nil; pair = pair.Next() {
			text := pair.Value.TextToTranslate
			if _, dup := seen[text]; dup {
				continue
			}
			seen[text] = struct{}{}
			if _, cached := translationCache.Get(ctx, text); cached {
				continue
			}
			items = append(items, translate.Item{Text: text, Entry: pair.Value})
		}
	}

	log.Info().
		Int("total_unique", len(seen)).
		Int("to_translate", len(items)).
		Msg("Translation plan")

	client := translate.NewClient(cfg.GeminiAPIKey, cfg.TranslationModel)
	promptBuilder := translate.NewPromptBuilder(cfg.SourceLang, cfg.TargetLang)
	systemPrompt := promptBuilder.SystemPrompt()

	semaphore := make(chan struct{}, cfg.MaxConcurrentAPICalls)
	batches := worker.Batch(items, cfg.BatchSize)

	for batchIdx, batchItems := range batches {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		semaphore <- struct{}{}

		log.Info().
			Int("batch", batchIdx+1).
			Int("total_batches", len(batches)).
			Int("size", len(batchItems)).
			Msg("Translating batch")

		// Protect control sequences before the call.
		protected := make([]translate.Item, len(batchItems))
		mappings := make([][]escapes.Mapping, len(batchItems))
		for i, item := range batchItems {
			safe, m := escapes.Protect(item.Text)
			protected[i] = translate.Item{Text: safe, Entry: item.Entry}
			mappings[i] = m
		}

		response, err := client.Translate(ctx, systemPrompt, promptBuilder.BuildBatchPrompt(protected))
		<-semaphore

		if err != nil {
			log.Error().Err(err).Int("batch", batchIdx+1).Msg("Batch translation failed")
			continue
		}

		parts := translate.SplitBatch(response, len(batchItems))
		for i, item := range batchItems {
			translated := parts[i]
			if translated == "" || !escapes.Intact(translated, mappings[i]) {
				translated, err = retrySingle(ctx, client, promptBuilder, systemPrompt, protected[i], mappings[i])
				if err != nil {
					log.Error().Err(err).Str("text", textutil.Truncate(item.Text, 30)).Msg("Individual translation failed")
					continue
				}
			}
			translated = escapes.Restore(translated, mappings[i])
			if err := translationCache.Set(ctx, item.Text, translated); err != nil {
				log.Warn().Err(err).Msg("Failed to cache translation")
			}
		}
	}

	// Assemble the translated document in input order.
	out := export.NewTranslatedDocument()
	total := 0
	for script := doc.Oldest(); script != nil; script = script.Next() {
		section := export.NewTranslatedScript()
		for pair := script.Value.Oldest(); pair != nil; pair = pair.Next() {
			if translated, ok := translationCache.Get(ctx, pair.Value.TextToTranslate); ok {
				section.Set(pair.Key, export.TranslatedEntry{Text: translated})
				total++
			}
		}
		if section.Len() > 0 {
			out.Set(script.Key, section)
		}
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()
	if err := export.EncodeTranslated(f, out); err != nil {
		return err
	}

	log.Info().
		Int("translated", total).
		Str("output", outPath).
		Msg("Translation complete")
	return nil
}

// retrySingle re-requests one text after a missing or mangled batch
// slot. Validation failures here are logged, not fatal: a mangled
// control sequence is better caught in QA than silently dropped.
func retrySingle(ctx context.Context, client *translate.Client, pb *translate.PromptBuilder, systemPrompt string, item translate.Item, mappings []escapes.Mapping) (string, error) {
	log.Warn().Str("text", textutil.Truncate(item.Text, 30)).Msg("Missing translation in batch response, retrying individually")
	translated, err := client.Translate(ctx, systemPrompt, pb.BuildSinglePrompt(item))
	if err != nil {
		return "", err
	}
	if !escapes.Intact(translated, mappings) {
		log.Warn().Str("text", textutil.Truncate(item.Text, 30)).Msg("Translation altered control-sequence placeholders")
	}
	return translated, nil
}
