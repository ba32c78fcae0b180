package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"cra-notify/internal/auth"
	"cra-notify/internal/config"
	"cra-notify/internal/database"
	"cra-notify/internal/models"
	"cra-notify/internal/repositories/postgres"
)

const seedPassword = "123456"

type seedUser struct {
	username  string
	email     string
	firstName string
	lastName  string
	role      string
}

var seedUsers = []seedUser{
	{"admin", "admin@cra-saintlouis.sn", "Platform", "Admin", models.RoleAdmin},
	{"awa.diop", "awa.diop@cra-saintlouis.sn", "Awa", "Diop", models.RoleResearcher},
	{"moussa.fall", "moussa.fall@cra-saintlouis.sn", "Moussa", "Fall", models.RoleResearcher},
	{"fatou.sow", "fatou.sow@cra-saintlouis.sn", "Fatou", "Sow", models.RoleManager},
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	slog.SetDefault(config.NewLogger(cfg.Log, os.Stdout))

	slog.Info("Starting database seeding...")

	db, err := database.NewPostgresConnection(cfg.Database.DSN())
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	ctx := context.Background()
	userRepo := postgres.NewUserRepository(db)
	projectRepo := postgres.NewProjectRepository(db)
	chatRepo := postgres.NewChatRepository(db)
	notificationRepo := postgres.NewNotificationRepository(db)

	slog.Info("Creating initial users...")
	users := make(map[string]*models.User, len(seedUsers))
	for _, data := range seedUsers {
		if existing, err := userRepo.FindByEmail(ctx, data.email); err == nil {
			slog.Info("User already exists", "username", data.username)
			users[data.username] = existing
			continue
		}

		hashed, err := auth.HashPassword(seedPassword)
		if err != nil {
			log.Fatal("Failed to hash password:", err)
		}
		user := &models.User{
			Username:  data.username,
			Email:     data.email,
			FirstName: data.firstName,
			LastName:  data.lastName,
			Role:      data.role,
			Password:  hashed,
			IsActive:  true,
		}
		if err := userRepo.Create(ctx, user); err != nil {
			slog.Warn("Failed to create user", "username", data.username, "error", err)
			continue
		}
		slog.Info("Created user", "username", data.username, "id", user.ID)
		users[data.username] = user
	}

	creator, ok := users["awa.diop"]
	if !ok {
		log.Fatal("Seed researcher missing, aborting")
	}

	slog.Info("Creating demo project...")
	project := &models.Project{
		Code:      "CRA-RIZ-2025",
		Title:     "Amélioration variétale du riz irrigué",
		CreatorID: creator.ID,
		Status:    "IN_PROGRESS",
	}
	if err := projectRepo.Create(ctx, project); err != nil {
		slog.Warn("Project might already exist", "code", project.Code, "error", err)
		return
	}
	slog.Info("Created project", "code", project.Code, "id", project.ID)

	memberIDs := []string{creator.ID}
	for _, username := range []string{"moussa.fall", "fatou.sow"} {
		user, ok := users[username]
		if !ok {
			continue
		}
		participant := &models.ProjectParticipant{ProjectID: project.ID, UserID: user.ID, IsActive: true}
		if err := projectRepo.AddParticipant(ctx, participant); err != nil {
			slog.Warn("Failed to add participant", "username", username, "error", err)
			continue
		}
		memberIDs = append(memberIDs, user.ID)
	}

	slog.Info("Creating project channel...")
	channel := &models.ChatChannel{
		Name:      project.Code,
		Type:      models.ChannelTypeProject,
		ProjectID: &project.ID,
		CreatorID: creator.ID,
	}
	if err := chatRepo.CreateChannel(ctx, channel, memberIDs); err != nil {
		slog.Warn("Failed to create channel", "error", err)
	} else {
		welcome := &models.ChatMessage{
			ChannelID: channel.ID,
			AuthorID:  creator.ID,
			Content:   "Bienvenue sur le canal du projet 👋",
		}
		if err := chatRepo.CreateMessage(ctx, welcome); err != nil {
			slog.Warn("Failed to create welcome message", "error", err)
		}
	}

	slog.Info("Creating sample notifications...")
	entityType := "project"
	for _, id := range memberIDs[1:] {
		n := &models.Notification{
			Title:      "Nouveau projet",
			Message:    "Vous avez été ajouté au projet " + project.Title,
			Type:       models.NotificationProjectUpdated,
			ReceiverID: id,
			SenderID:   &creator.ID,
			EntityType: &entityType,
			EntityID:   &project.ID,
		}
		if err := notificationRepo.Create(ctx, n); err != nil {
			slog.Warn("Failed to create notification", "receiverID", id, "error", err)
		}
	}

	slog.Info("Database seeding completed successfully!")
}
