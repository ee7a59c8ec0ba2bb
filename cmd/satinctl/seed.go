package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/rand/v2"

	"github.com/spf13/cobra"

	"github.com/ilbumi/satin/internal/domain"
	"github.com/ilbumi/satin/internal/media/images"
	"github.com/ilbumi/satin/internal/service"
)

var (
	seedImages      int
	seedAnnotations int
	seedProjectName string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill the store with a demo project",
	Long: `seed creates a project with generated images, a small tag hierarchy,
random bounding boxes and one review task per image. It is meant for
trying out clients against a fresh data directory.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().IntVar(&seedImages, "images", 5, "Number of images to generate")
	seedCmd.Flags().IntVar(&seedAnnotations, "annotations", 3, "Annotations per image")
	seedCmd.Flags().StringVar(&seedProjectName, "project", "Demo survey", "Project name")
}

// seedTags is the demo hierarchy, parents before children.
var seedTags = []struct{ name, parent, color string }{
	{"Vehicle", "", "#1f77b4"},
	{"Car", "Vehicle", "#aec7e8"},
	{"Boat", "Vehicle", "#ff7f0e"},
	{"Animal", "", "#2ca02c"},
	{"Bird", "Animal", "#98df8a"},
	{"Heron", "Bird", "#d62728"},
}

func runSeed(cmd *cobra.Command, args []string) error {
	s, err := openStack(true)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	storage, err := images.NewStorage(s.cfg.Storage.ImageDir)
	if err != nil {
		return err
	}

	deps := s.deps()
	projects := service.NewProjectService(s.repos, deps)
	tags := service.NewTagService(s.repos, deps)
	imageSvc := service.NewImageService(s.repos, storage, images.NewProcessor(s.logger), nil, s.cfg.Storage, deps)
	annotations := service.NewAnnotationService(s.repos, s.cfg.Annotation, deps)
	tasks := service.NewTaskService(s.repos, deps)

	project, err := projects.CreateProject(ctx, service.CreateProjectRequest{
		Name:        seedProjectName,
		Description: "Generated by satinctl seed",
		Labels:      []string{"demo"},
	})
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	fmt.Fprintf(out, "Created project %s (%s)\n", project.Name, project.ID)

	byName := make(map[string]*domain.Tag, len(seedTags))
	var leafIDs []string
	for _, t := range seedTags {
		req := service.CreateTagRequest{Name: t.name, Color: t.color}
		if parent, ok := byName[t.parent]; ok {
			req.ParentID = parent.ID
		}
		tag, err := tags.CreateTag(ctx, req)
		if err != nil {
			return fmt.Errorf("create tag %s: %w", t.name, err)
		}
		byName[t.name] = tag
		if tag.Depth > 0 {
			leafIDs = append(leafIDs, tag.ID)
		}
	}
	fmt.Fprintf(out, "Created %d tags\n", len(byName))

	created := 0
	for n := range seedImages {
		const width, height = 320, 240
		content, err := generatePNG(width, height, uint8(n*40))
		if err != nil {
			return err
		}

		res, err := imageSvc.RegisterImage(ctx, service.RegisterImageRequest{
			ProjectID: project.ID,
			Filename:  fmt.Sprintf("seed-%03d.png", n+1),
			Metadata:  map[string]string{"source": "seed"},
		}, bytes.NewReader(content))
		if err != nil {
			return fmt.Errorf("register image %d: %w", n+1, err)
		}

		for range seedAnnotations {
			confidence := 0.5 + rand.Float64()/2
			w := 20 + rand.Float64()*80
			h := 20 + rand.Float64()*80
			_, err := annotations.CreateAnnotation(ctx, service.CreateAnnotationRequest{
				ImageID: res.Image.ID,
				BoundingBox: domain.BoundingBox{
					X:      rand.Float64() * (width - w),
					Y:      rand.Float64() * (height - h),
					Width:  w,
					Height: h,
				},
				Tags:       []string{leafIDs[rand.IntN(len(leafIDs))]},
				Confidence: &confidence,
				Source:     "seed",
			})
			if err != nil {
				return fmt.Errorf("annotate image %d: %w", n+1, err)
			}
			created++
		}

		if _, err := tasks.CreateTask(ctx, service.CreateTaskRequest{
			ProjectID: project.ID,
			ImageID:   res.Image.ID,
			Priority:  rand.IntN(11),
			Notes:     "review seeded boxes",
		}); err != nil {
			return fmt.Errorf("create task for image %d: %w", n+1, err)
		}
	}

	fmt.Fprintf(out, "Created %d images with %d annotations\n", seedImages, created)
	return nil
}

// generatePNG renders a vertical gradient so every seeded image has
// distinct content.
func generatePNG(width, height int, shade uint8) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		c := color.RGBA{R: shade, G: uint8(y * 255 / height), B: 255 - shade, A: 255}
		for x := range width {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
