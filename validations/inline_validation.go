package validations

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	domainInline "github.com/lumio-chat/inlinegw/domains/inline"
	pkgError "github.com/lumio-chat/inlinegw/pkg/error"
)

func ValidateInlineQuery(ctx context.Context, request domainInline.QueryRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.BotID, validation.Required),
		validation.Field(&request.PeerID, validation.Required),
		validation.Field(&request.Query, validation.Length(0, 512)),
		validation.Field(&request.Offset, validation.Length(0, 64)),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	if request.Geo != nil {
		err := validation.ValidateStructWithContext(ctx, request.Geo,
			validation.Field(&request.Geo.Latitude, validation.Min(-90.0), validation.Max(90.0)),
			validation.Field(&request.Geo.Longitude, validation.Min(-180.0), validation.Max(180.0)),
		)
		if err != nil {
			return pkgError.ValidationError(err.Error())
		}
	}

	return nil
}
