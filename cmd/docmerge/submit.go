package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/docmerge/constants"
	"github.com/joseph-ayodele/docmerge/internal/server"
)

var (
	submitAddr string
	submitWait bool
	submitPoll time.Duration
)

var submitCmd = &cobra.Command{
	Use:   "submit <archive.zip>",
	Short: "Submit an archive to a running docmerged",
	Long: `Submits a server-side archive path through the JobService and prints the job id.
With --wait the command polls the job status until it completes or fails.`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVar(&submitAddr, "addr", "localhost:8080", "docmerged gRPC address")
	submitCmd.Flags().BoolVar(&submitWait, "wait", false, "poll until the job finishes")
	submitCmd.Flags().DurationVar(&submitPoll, "poll", time.Second, "status poll interval")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	archive, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	conn, err := grpc.NewClient(submitAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("dial %s: %w", submitAddr, err)
	}
	defer conn.Close()
	client := server.NewJobServiceClient(conn)

	ctx := cmd.Context()
	req, err := structpb.NewStruct(map[string]any{
		"archive_path":      archive,
		"original_filename": filepath.Base(archive),
	})
	if err != nil {
		return err
	}
	resp, err := client.Submit(ctx, req)
	if err != nil {
		return err
	}
	jobID := resp.GetFields()["job_id"].GetStringValue()
	colorGreen.Printf("submitted %s\n", jobID)
	colorWhite.Printf("status dir: %s\n", resp.GetFields()["status_dir"].GetStringValue())
	if !submitWait {
		return nil
	}
	return waitForJob(ctx, client, jobID)
}

func waitForJob(ctx context.Context, client *server.JobServiceClient, jobID string) error {
	req, err := structpb.NewStruct(map[string]any{"job_id": jobID})
	if err != nil {
		return err
	}
	ticker := time.NewTicker(submitPoll)
	defer ticker.Stop()

	last := -1
	for {
		st, err := client.Status(ctx, req)
		if err != nil {
			return err
		}
		f := st.GetFields()
		percent := int(f["percent"].GetNumberValue())
		if percent != last {
			colorCyan.Printf("[%3d%%] ", percent)
			colorWhite.Println(f["status_text"].GetStringValue())
			last = percent
		}
		switch {
		case f["complete"].GetBoolValue():
			out := f["output_pdf"].GetStringValue()
			if out == "" {
				out = f["output_docx"].GetStringValue()
			}
			colorGreen.Printf("done: %s\n", out)
			return nil
		case f["current_step"].GetStringValue() == string(constants.StepError):
			return fmt.Errorf("job %s failed: %s", jobID, f["error"].GetStringValue())
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
