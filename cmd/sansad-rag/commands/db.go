package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/jinford/sansad-rag/internal/platform/database"
)

// DBMigrateAction はスキーマのマイグレーションを適用するコマンドのアクション
func DBMigrateAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	pool := appCtx.Container.Pool()
	if pool == nil {
		return errors.New("データベースに接続されていません")
	}

	// 起動時にも適用されるため、ここでは未適用分があれば適用して一覧を表示する
	applied, err := database.Migrate(ctx, pool, appCtx.Logger())
	if err != nil {
		return fmt.Errorf("マイグレーションに失敗: %w", err)
	}

	if len(applied) == 0 {
		fmt.Println("適用済みです")
		return nil
	}
	fmt.Printf("適用したマイグレーション: %s\n", strings.Join(applied, ", "))
	return nil
}

// DBHealthAction は文書ストアの接続状態と件数を表示するコマンドのアクション
func DBHealthAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	health := appCtx.Container.DocumentStore.Health(ctx)
	if !health.Connected {
		return fmt.Errorf("文書ストアに接続できません: %s", health.Error)
	}

	fmt.Printf("connected:          %t\n", health.Connected)
	fmt.Printf("total documents:    %d\n", health.TotalDocuments)
	fmt.Printf("ministries:         %d\n", health.MinistryCount)
	fmt.Printf("indexed ministries: %s\n", strings.Join(health.IndexedMinistries, ", "))
	return nil
}

// DBClearAllAction はすべての文書を削除するコマンドのアクション
func DBClearAllAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if err := confirm("すべての文書を削除します。よろしいですか", cmd.Bool("yes")); err != nil {
		return err
	}

	deleted, err := appCtx.Container.DocumentStore.ClearAll(ctx)
	if err != nil {
		return fmt.Errorf("文書の削除に失敗: %w", err)
	}

	appCtx.Logger().Info("すべての文書を削除しました", "deleted", deleted)
	fmt.Printf("%d documents deleted\n", deleted)
	return nil
}
