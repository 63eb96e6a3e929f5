package db

import (
	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
)

const ctxDBKey = "wabiz_db"

// SetDBtoContext expõe a conexão aos handlers do gin.
// Cada request recebe uma sessão limpa (sem escopos herdados).
func SetDBtoContext(conn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if conn != nil {
			c.Set(ctxDBKey, conn.New())
		}
		c.Next()
	}
}

// DBInstance devolve nil quando o middleware não foi instalado.
func DBInstance(c *gin.Context) *gorm.DB {
	v, ok := c.Get(ctxDBKey)
	if !ok {
		return nil
	}
	conn, _ := v.(*gorm.DB)
	return conn
}
