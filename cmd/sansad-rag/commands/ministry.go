package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

// MinistryListAction は省庁一覧と登録済み文書数を表示するコマンドのアクション
// --all を付けると未登録の省庁も含めて一覧する
func MinistryListAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	showAll := cmd.Bool("all")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	store := appCtx.Container.DocumentStore
	catalog := appCtx.Container.Catalog

	var names []string
	if showAll {
		for _, m := range catalog.Ministries() {
			names = append(names, m.Name)
		}
	} else {
		names = store.IndexedMinistries()
	}

	if len(names) == 0 {
		fmt.Println("登録済みの省庁はありません")
		return nil
	}

	rows := make([]MinistryRow, 0, len(names))
	for _, name := range names {
		count, err := store.MinistryDocumentCount(ctx, name)
		if err != nil {
			return fmt.Errorf("文書数の取得に失敗: %s: %w", name, err)
		}
		code, _ := catalog.CodeOf(name)
		rows = append(rows, MinistryRow{Name: name, Code: code, Documents: count})
	}

	return renderMinistries(os.Stdout, rows)
}

// MinistryCountAction は指定した省庁の文書数を表示するコマンドのアクション
func MinistryCountAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	ministry := cmd.String("ministry")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	count, err := appCtx.Container.DocumentStore.MinistryDocumentCount(ctx, ministry)
	if err != nil {
		return fmt.Errorf("文書数の取得に失敗: %w", err)
	}

	fmt.Printf("%s: %d documents\n", ministry, count)
	return nil
}

// MinistryClearAction は指定した省庁の文書をすべて削除するコマンドのアクション
func MinistryClearAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	ministry := cmd.String("ministry")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if err := confirm(fmt.Sprintf("%s の文書をすべて削除します。よろしいですか", ministry), cmd.Bool("yes")); err != nil {
		return err
	}

	deleted, err := appCtx.Container.DocumentStore.ClearMinistry(ctx, ministry)
	if err != nil {
		return fmt.Errorf("省庁の文書削除に失敗: %w", err)
	}

	appCtx.Logger().Info("省庁の文書を削除しました", "ministry", ministry, "deleted", deleted)
	fmt.Printf("%s: %d documents deleted\n", ministry, deleted)
	return nil
}
