package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"meandu-go/internal/auth"
	"meandu-go/internal/config"
	"meandu-go/internal/logging"
	appRedis "meandu-go/internal/redis"
	"meandu-go/internal/services"
	"meandu-go/internal/storage"
)

func usage() {
	fmt.Println("使用方法:")
	fmt.Println("  roomadmin token <userID> <name>                  - 签发访问 token")
	fmt.Println("  roomadmin revoke <token>                         - 吊销 token (需要 Redis)")
	fmt.Println("  roomadmin create-room <ownerID> <name> [desc]    - 创建房间")
	fmt.Println("  roomadmin list-rooms <ownerID>                   - 列出用户的房间")
	fmt.Println("  roomadmin list-messages <roomID>                 - 显示房间历史消息")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(os.Getenv("MEANDU_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel, cfg.LogPretty)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	args := os.Args[2:]
	switch os.Args[1] {
	case "token":
		need(args, 2, "需要指定用户ID和名称")
		issueToken(cfg.Auth, args[0], args[1])

	case "revoke":
		need(args, 1, "需要指定 token")
		revokeToken(ctx, cfg, args[0])

	case "create-room":
		need(args, 2, "需要指定创建者ID和房间名称")
		desc := ""
		if len(args) > 2 {
			desc = args[2]
		}
		createRoom(ctx, roomService(cfg), services.CreateRoomInput{OwnerID: args[0], Name: args[1], Description: desc})

	case "list-rooms":
		need(args, 1, "需要指定用户ID")
		listRooms(ctx, roomService(cfg), args[0])

	case "list-messages":
		need(args, 1, "需要指定房间ID")
		listMessages(ctx, roomService(cfg), args[0])

	default:
		usage()
		log.Fatal().Str("command", os.Args[1]).Msg("未知命令")
	}
}

func need(args []string, n int, msg string) {
	if len(args) < n {
		log.Fatal().Msg(msg)
	}
}

// roomService opens the database directly. No relay is attached: rooms
// created here have no connected clients yet.
func roomService(cfg config.Config) services.RoomService {
	db, err := storage.InitDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("连接数据库失败")
	}
	if err := storage.AutoMigrateTables(db); err != nil {
		log.Fatal().Err(err).Msg("迁移数据库表失败")
	}
	return services.NewRoomService(storage.NewGormRoomRepository(db), storage.NewGormMessageRepository(db), nil, nil)
}

func issueToken(authCfg config.AuthConfig, userID, name string) {
	token, err := auth.GenerateToken(userID, name, authCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("签发 token 失败")
	}
	fmt.Println(token)
}

func revokeToken(ctx context.Context, cfg config.Config, token string) {
	client, err := appRedis.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("连接 Redis 失败")
	}
	defer client.Close()

	claims, err := auth.RevokeToken(ctx, token, cfg.Auth.JWTSecretKey, appRedis.NewRedisTokenBlacklist(client))
	if err != nil {
		log.Fatal().Err(err).Msg("吊销 token 失败")
	}
	fmt.Printf("已吊销用户 %s 的 token (jti %s), 原过期时间 %s\n",
		claims.UserID(), claims.ID, claims.ExpiresAt.Time.Format("2006-01-02 15:04:05"))
}

func createRoom(ctx context.Context, svc services.RoomService, input services.CreateRoomInput) {
	room, err := svc.CreateRoom(ctx, input)
	if err != nil {
		log.Fatal().Err(err).Msg("创建房间失败")
	}
	fmt.Printf("房间已创建: %s\n", room.ID)
	fmt.Println("--------------------------------------")
	fmt.Printf("名称: %s\n", room.Name)
	fmt.Printf("描述: %s\n", room.Description)
	fmt.Printf("创建者: %s\n", room.User)
}

func listRooms(ctx context.Context, svc services.RoomService, ownerID string) {
	rooms, err := svc.ListRooms(ctx, ownerID)
	if err != nil {
		log.Fatal().Err(err).Msg("获取房间列表失败")
	}
	fmt.Printf("用户 %s 的房间 (%d 个):\n", ownerID, len(rooms))
	fmt.Println("--------------------------------------")
	for i, r := range rooms {
		fmt.Printf("#%d ID: %s, 名称: %s, 描述: %s\n", i+1, r.ID, r.Name, r.Description)
	}
}

func listMessages(ctx context.Context, svc services.RoomService, roomID string) {
	if _, err := svc.GetRoom(ctx, roomID); err != nil {
		log.Fatal().Err(err).Str("room", roomID).Msg("查找房间失败")
	}
	msgs, err := svc.History(ctx, roomID)
	if err != nil {
		log.Fatal().Err(err).Msg("获取历史消息失败")
	}
	fmt.Printf("房间 %s 的消息 (%d 条):\n", roomID, len(msgs))
	fmt.Println("--------------------------------------")
	for _, m := range msgs {
		fmt.Printf("[%s] %s (%s): %s\n", m.SentAt().Local().Format("2006-01-02 15:04:05"), m.SenderName, m.Sender, m.Message)
	}
}
