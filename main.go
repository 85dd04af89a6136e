package main

import (
	"context"
	"log"

	global "DMCore/global"
	mid "DMCore/middleware"
	midsec "DMCore/middleware/security"
	msg "DMCore/module/message"
	msgsvc "DMCore/module/message/service"
	user "DMCore/module/user"
	usersvc "DMCore/module/user/service"
	"DMCore/service/chat"
	"DMCore/service/chat/handlers"

	"github.com/gin-gonic/gin"
)

func main() {
	ctx := context.Background()

	// 1) 基础设施（redis/mongo/nats/kafka 均可缺省降级）
	global.ConfigIds()
	global.ConfigRedis()
	hasMongo := global.ConfigMgo(ctx)
	busClient := global.ConfigNats()
	global.ConfigKafka()

	// 2) 身份服务
	identity := usersvc.NewIdentity(global.GetJwtSecret(), 0)

	// 3) 网关实例 + 上行处理器
	srv := chat.NewServer(global.GatewayID(), identity, chat.ServerConf{})
	srv.Disp().Register(handlers.NewPingHandler())
	if err := srv.AttachBus(busClient); err != nil {
		log.Fatalf("attach delivery bus failed: %v", err)
	}
	global.ConfigKafkaFeed(ctx, srv)
	defer srv.Shutdown()

	// 4) 消息业务
	var store msgsvc.Store
	if hasMongo {
		store = msgsvc.NewMongoStore()
	} else {
		store = msgsvc.NewMemoryStore()
	}
	messageSvc := msgsvc.NewService(store, srv)
	messageH := msg.NewHandlers(messageSvc)
	userH := user.NewHandlers(identity)

	// 5) HTTP + WebSocket
	mid.SetAuth(midsec.Middleware(identity, midsec.DefaultOptions()))

	r := gin.New()
	r.Use(gin.Recovery())
	mid.Manager().Add(mid.AccessLog())
	r.Use(mid.Manager().Use())

	r.GET("/ws", srv.HandleWS) // ws://host/ws，首帧必须是 auth
	mid.POST(r, "/login", userH.HandlerLogin, mid.RouteOpt{IsAuth: false})
	mid.POST(r, "/check", userH.HandlerCheck, mid.RouteOpt{IsAuth: true})
	mid.POST(r, "/messages", messageH.HandlerSend, mid.RouteOpt{IsAuth: true})
	mid.GET(r, "/messages/history", messageH.HandlerHistory, mid.RouteOpt{IsAuth: true})

	log.Printf("[HTTP] Listening on %s", global.HTTPAddr())
	if err := r.Run(global.HTTPAddr()); err != nil {
		log.Fatalf("HTTP server failed: %v", err)
	}
}
