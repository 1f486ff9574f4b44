package cli

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"
	"lesson-arcade-service/internal/app"
	"lesson-arcade-service/internal/config"
	"lesson-arcade-service/internal/domain"
	"lesson-arcade-service/internal/infra/memory"
)

// NewGenerateCmd generates a single lesson plan and prints it as JSON.
func NewGenerateCmd(configPath *string) *cobra.Command {
	var req domain.LessonRequest
	var audience, difficulty string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a lesson plan for a video and print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			req.Audience = domain.Audience(audience)
			req.Difficulty = domain.Difficulty(difficulty)

			repo := memory.NewLessonRepository(memory.NewStaticLessonStore(nil), time.Hour)
			service := app.NewLessonService(newGateway(cfg), modelTiers(cfg), repo)
			lesson, err := service.CreateLesson(cmd.Context(), req)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(lesson)
		},
	}

	cmd.Flags().StringVar(&req.VideoURL, "video-url", "", "video URL")
	cmd.Flags().StringVar(&req.Title, "title", "", "video title")
	cmd.Flags().StringVar(&req.Description, "description", "", "video description")
	cmd.Flags().StringVar(&audience, "audience", string(domain.AudienceBeginner), "beginner|intermediate|advanced|professional|child")
	cmd.Flags().StringVar(&difficulty, "difficulty", string(domain.DifficultyMedium), "easy|medium|hard")
	_ = cmd.MarkFlagRequired("video-url")
	return cmd
}
