package crypto

import "github.com/netbot-proxy/netbot/internal/xerrors"

var (
	errInvalidECBLength  = xerrors.New("crypto: invalid ECB block length").WithKind(xerrors.KindInvalidFraming)
	errInvalidECBPadding = xerrors.New("crypto: invalid PKCS7 padding").WithKind(xerrors.KindInvalidFraming)
)
