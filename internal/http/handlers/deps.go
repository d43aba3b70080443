package handlers

import (
	"time"

	"sierraspos/internal/config"
	"sierraspos/internal/media"
	"sierraspos/internal/metrics"
	"sierraspos/internal/notify"
	"sierraspos/internal/repos"
	"sierraspos/internal/services"
)

type Deps struct {
	AuthSvc    *services.AuthService
	Collection *notify.CollectionJob
	Metrics    *metrics.Metrics

	AuthHandler      *AuthHandler
	FamilyHandler    *FamilyHandler
	ProductHandler   *ProductHandler
	CategoryHandler  *CategoryHandler
	InventoryHandler *InventoryHandler
	SaleHandler      *SaleHandler
	AdminHandler     *AdminHandler
}

func NewDeps(store *repos.Store, cfg config.Config, n *notify.Notifier, m *metrics.Metrics, loc *time.Location) *Deps {
	mediaStore := media.NewStore(cfg.MediaDir, "/media")

	authSvc := services.NewAuthService(store.Users, n)
	familySvc := services.NewFamilyService(store.Families, n)
	catalogSvc := services.NewCatalogService(store.Products, mediaStore)
	invSvc := services.NewInventoryService(store.Products)
	saleSvc := services.NewSaleService(store, n, m)
	exportSvc := &services.ExportService{Sales: store.Sales, Loc: loc}
	settingsSvc := services.NewSettingsService(store.Settings, mediaStore)
	job := notify.NewCollectionJob(store.Families, n)

	return &Deps{
		AuthSvc:    authSvc,
		Collection: job,
		Metrics:    m,

		AuthHandler:      &AuthHandler{Auth: authSvc},
		FamilyHandler:    &FamilyHandler{Families: familySvc, Collection: job},
		ProductHandler:   &ProductHandler{Catalog: catalogSvc},
		CategoryHandler:  &CategoryHandler{Catalog: catalogSvc},
		InventoryHandler: &InventoryHandler{Inv: invSvc},
		SaleHandler:      &SaleHandler{Sales: saleSvc, Export: exportSvc},
		AdminHandler:     &AdminHandler{Auth: authSvc, Settings: settingsSvc},
	}
}
