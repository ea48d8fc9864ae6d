package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/jinford/sansad-rag/internal/core/ingestion"
)

// MonitorCheckAction は原本一覧の変化を1回確認し、変化した省庁を取り込むコマンドのアクション
func MonitorCheckAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	ministries, err := monitorTargets(appCtx, cmd.String("ministry"))
	if err != nil {
		return err
	}

	changes, err := appCtx.Container.Monitor.Check(ctx, ministries)
	if len(changes) > 0 {
		if renderErr := renderChanges(os.Stdout, changes); renderErr != nil {
			return renderErr
		}
	}
	return err
}

// MonitorRunAction は更新監視をスケジュール実行するコマンドのアクション
// シグナルを受けるまで実行し続ける
func MonitorRunAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	ministries, err := monitorTargets(appCtx, cmd.String("ministry"))
	if err != nil {
		return err
	}

	schedule := cmd.String("schedule")
	if schedule == "" {
		schedule = appCtx.Config.Monitor.Schedule
	}

	job := ingestion.NewMonitorJob(ingestion.MonitorJobConfig{
		Schedule:   schedule,
		Ministries: ministries,
	}, appCtx.Container.Monitor, appCtx.Logger())

	if cmd.Bool("now") {
		if err := job.Run(ctx); err != nil {
			return err
		}
	}

	if err := job.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	job.Stop()

	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}

// monitorTargets は監視対象の省庁を返す。未指定ならコードを持つ全省庁
func monitorTargets(appCtx *AppContext, ministry string) ([]string, error) {
	if ministry != "" {
		if err := appCtx.requireMinistry(ministry); err != nil {
			return nil, err
		}
		return []string{ministry}, nil
	}

	var names []string
	for _, m := range appCtx.Container.Catalog.WithCodes() {
		names = append(names, m.Name)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("sansad.in のコードを持つ省庁がありません")
	}
	return names, nil
}

// renderChanges は監視結果を表形式で出力する
func renderChanges(w io.Writer, changes []ingestion.Change) error {
	table := tablewriter.NewWriter(w)
	table.Header("Ministry", "PDFs", "Changed", "Ingested", "Status")
	for _, c := range changes {
		ingested := "-"
		if c.Result != nil {
			ingested = strconv.Itoa(c.Result.Ingested)
		}
		status := "ok"
		if c.Err != nil {
			status = truncateString(c.Err.Error(), 60)
		}
		if err := table.Append([]string{
			c.Ministry,
			strconv.Itoa(c.Current.Count),
			strconv.FormatBool(c.Changed),
			ingested,
			status,
		}); err != nil {
			return err
		}
	}
	return table.Render()
}
