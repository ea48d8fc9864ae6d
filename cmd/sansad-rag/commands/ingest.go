package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/jinford/sansad-rag/internal/core/ingestion"
)

// IngestSansadAction は sansad.in から省庁の答弁PDFを取得して登録するコマンドのアクション
// --ministry も --code も指定しない場合はコードを持つ全省庁を順に処理する
func IngestSansadAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	ministry := cmd.String("ministry")
	code := cmd.Int("code")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	catalog := appCtx.Container.Catalog
	logger := appCtx.Logger()

	var targets []string
	switch {
	case ministry != "":
		if err := appCtx.requireMinistry(ministry); err != nil {
			return err
		}
		targets = []string{ministry}
	case code != 0:
		name, ok := catalog.NameOf(code)
		if !ok {
			return fmt.Errorf("未知の省庁コードです: %d", code)
		}
		targets = []string{name}
	default:
		for _, m := range catalog.WithCodes() {
			targets = append(targets, m.Name)
		}
	}

	var results []*ingestion.Result
	var errs []error
	for _, name := range targets {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		result, err := appCtx.Container.Coordinator.IngestMinistry(ctx, name, appCtx.Container.Sansad)
		if err != nil {
			logger.Error("省庁の取り込みに失敗しました", "ministry", name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		results = append(results, result)
	}

	if len(results) > 0 {
		if err := renderIngestResult(os.Stdout, results); err != nil {
			return err
		}
	}
	return errors.Join(errs...)
}

// IngestStoredAction は保存済みの原本PDFを再処理して登録するコマンドのアクション
func IngestStoredAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	ministry := cmd.String("ministry")
	force := cmd.Bool("force")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if err := appCtx.requireMinistry(ministry); err != nil {
		return err
	}

	result, err := appCtx.Container.Coordinator.IngestStored(ctx, ministry, force)
	if err != nil {
		return fmt.Errorf("保存済み原本の取り込みに失敗: %w", err)
	}

	return renderIngestResult(os.Stdout, []*ingestion.Result{result})
}
